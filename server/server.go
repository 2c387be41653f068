package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"aaoifi-rag/pkg/chain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Agent is the slice of the agent chains the server needs.
type Agent interface {
	AnswerQuestion(ctx context.Context, contextText, question string) (string, error)
	FindRelevantRules(ctx context.Context, contextText, question string) (*chain.RulesResult, error)
	ProcessStandard(ctx context.Context, inputText string) (*chain.StandardAnalysis, error)
	StreamAnswer(ctx context.Context, contextText, question string, fn func(chunk string) error) error
}

type Config struct {
	Port      int
	Streaming bool
}

// Server exposes the challenge endpoints over HTTP with permissive CORS.
type Server struct {
	config  Config
	agent   Agent
	handler http.Handler
}

// Message is one websocket frame in either direction.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type challengeRequest struct {
	Context  string `json:"context"`
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// analysisResponse keeps the original wire contract, capitalized Analysis
// key included.
type analysisResponse struct {
	Analysis   string `json:"Analysis"`
	Suggestion string `json:"suggestion"`
	Validation string `json:"validation"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(config Config, agent Agent) *Server {
	s := &Server{
		config: config,
		agent:  agent,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.dispatch)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.handler = mux

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Handler returns the root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the HTTP server until it fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	return http.ListenAndServe(addr, s.handler)
}

// dispatch routes the challenge endpoints. Paths are matched
// case-insensitively, so /Challenge_1 works too.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusNotFound, "Endpoint not found.")
		return
	}

	switch strings.ToLower(r.URL.Path) {
	case "/challenge_1":
		s.handleChallenge1(w, r)
	case "/challenge_2":
		s.handleChallenge2(w, r)
	case "/challenge_3":
		s.handleChallenge3(w, r)
	case "/challenge_4":
		s.handleChallenge4(w, r)
	default:
		color.Red("Endpoint not found: %s from %s", r.URL.Path, r.RemoteAddr)
		s.writeError(w, http.StatusNotFound, "Endpoint not found.")
	}
}

// handleChallenge1 answers a question based on the provided context.
func (s *Server) handleChallenge1(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChallengeRequest(r)
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	color.Blue("Processing question from %s to %s", r.RemoteAddr, r.URL.Path)

	answer, err := s.agent.AnswerQuestion(r.Context(), req.Context, req.Question)
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, answerResponse{Answer: answer})
	color.Green("Successfully processed question from %s", r.RemoteAddr)
}

// handleChallenge2 finds relevant FAS rules with relevance percentages.
func (s *Server) handleChallenge2(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChallengeRequest(r)
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	color.Blue("Finding relevant FAS rules from %s to %s", r.RemoteAddr, r.URL.Path)

	result, err := s.agent.FindRelevantRules(r.Context(), req.Context, req.Question)
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
	color.Green("Successfully found relevant FAS rules for %s", r.RemoteAddr)
}

// handleChallenge3 runs the standard text through the three-step pipeline.
func (s *Server) handleChallenge3(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChallengeRequest(r)
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	color.Blue("Processing request from %s to %s", r.RemoteAddr, r.URL.Path)

	analysis, err := s.agent.ProcessStandard(r.Context(), req.Context)
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, analysisResponse{
		Analysis:   analysis.Summary,
		Suggestion: analysis.Suggestion,
		Validation: analysis.Validation,
	})
	color.Green("Successfully processed request from %s", r.RemoteAddr)
}

// handleChallenge4 accepts a multipart file upload and runs its content
// through the three-step pipeline.
func (s *Server) handleChallenge4(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "multipart/form-data") {
		color.Red("Invalid content type in request from %s", r.RemoteAddr)
		s.writeError(w, http.StatusBadRequest, "Expected multipart/form-data")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		color.Red("Error parsing multipart form: %v", err)
		s.writeError(w, http.StatusBadRequest, "Missing file or question.")
		return
	}

	file, _, err := r.FormFile("file")
	question := r.FormValue("question")
	if err != nil || question == "" {
		color.Red("Missing file or question in request from %s", r.RemoteAddr)
		s.writeError(w, http.StatusBadRequest, "Missing file or question.")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		color.Red("Error reading uploaded file: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	color.Blue("Processing file upload from %s", r.RemoteAddr)

	analysis, err := s.agent.ProcessStandard(r.Context(), string(content))
	if err != nil {
		color.Red("Error processing request: %v", err)
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, analysisResponse{
		Analysis:   analysis.Summary,
		Suggestion: analysis.Suggestion,
		Validation: analysis.Validation,
	})
	color.Green("Successfully processed file upload from %s", r.RemoteAddr)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		color.Red("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("Invalid message: %v", err))
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	question := strings.TrimSpace(msg.Content)
	if question == "" {
		s.sendMessage(conn, "error", "Missing question.")
		return
	}

	if s.config.Streaming {
		s.sendMessage(conn, "status", "Generating answer...")
		err := s.agent.StreamAnswer(ctx, "", question, func(chunk string) error {
			return s.sendMessage(conn, "stream", chunk)
		})
		if err != nil {
			s.sendMessage(conn, "error", err.Error())
			return
		}
		s.sendMessage(conn, "done", "")
		return
	}

	answer, err := s.agent.AnswerQuestion(ctx, "", question)
	if err != nil {
		s.sendMessage(conn, "error", err.Error())
		return
	}
	s.sendMessage(conn, "response", answer)
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string) error {
	return conn.WriteJSON(Message{Type: msgType, Content: content})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, errorResponse{Error: message})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func decodeChallengeRequest(r *http.Request) (*challengeRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading request body: %w", err)
	}

	var req challengeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("error parsing request body: %w", err)
	}

	if req.Context == "" || req.Question == "" {
		return nil, fmt.Errorf("Missing context or question.")
	}

	return &req, nil
}
