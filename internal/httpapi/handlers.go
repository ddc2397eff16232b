package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"ragserver/internal/events"
	"ragserver/internal/model"
	"ragserver/internal/pipeline"
	"ragserver/internal/ragerr"
	"ragserver/internal/validation"
)

const maxUploadMemory = 32 << 20 // buffer threshold before multipart spills to disk

type uploadResponse struct {
	FileID          string `json:"file_id"`
	Filename        string `json:"filename"`
	FileSize        int64  `json:"file_size"`
	ChunkCount      int    `json:"chunk_count"`
	EmbeddingStatus string `json:"embedding_status"`
	Message         string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-User-ID")
	if err := validation.OwnerID(ownerID); err != nil {
		writeError(w, ragerr.New(ragerr.Validation, "X-User-ID header must be a UUIDv4"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, ragerr.Wrap(ragerr.Validation, "parsing multipart form", err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, ragerr.Wrap(ragerr.Validation, "missing file field", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, ragerr.Wrap(ragerr.Validation, "reading uploaded bytes", err))
		return
	}

	result, err := s.Ingest.Ingest(requestContext(r), ownerID, header.Filename, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileID:          result.FileID,
		Filename:        header.Filename,
		FileSize:        int64(len(data)),
		ChunkCount:      result.ChunkCount,
		EmbeddingStatus: string(model.IngestCompleted),
		Message:         "ingest complete",
	})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-User-ID")
	if err := validation.OwnerID(ownerID); err != nil {
		writeError(w, ragerr.New(ragerr.Validation, "X-User-ID header must be a UUIDv4"))
		return
	}
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	files, err := s.Ingest.Relational.ListFiles(requestContext(r), ownerID, limit, offset)
	if err != nil {
		writeError(w, ragerr.Wrap(ragerr.PersistenceFailed, "listing files", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get("X-User-ID")
	if err := validation.OwnerID(ownerID); err != nil {
		writeError(w, ragerr.New(ragerr.Validation, "X-User-ID header must be a UUIDv4"))
		return
	}
	fileID, err := validation.FileID(r.PathValue("file_id"))
	if err != nil {
		writeError(w, ragerr.Wrap(ragerr.Validation, "file_id", err))
		return
	}

	ctx := requestContext(r)
	file, err := s.Ingest.Relational.GetFile(ctx, fileID)
	if err != nil {
		writeError(w, ragerr.Wrap(ragerr.NotFound, "file not found", err))
		return
	}
	if file.OwnerID != ownerID {
		writeError(w, ragerr.New(ragerr.Forbidden, "requester does not own this file"))
		return
	}
	if err := s.Ingest.Delete(ctx, file); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_id": fileID, "deleted": true})
}

type chatRequest struct {
	Query           string   `json:"query"`
	SessionID       string   `json:"session_id"`
	FileIDs         []string `json:"file_ids"`
	Language        string   `json:"language"`
	TopK            int      `json:"top_k"`
	EnableExpansion bool     `json:"enable_expansion"`
	UserID          string   `json:"user_id"`
}

func decodeChatRequest(r *http.Request) (chatRequest, string, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return chatRequest{}, "", ragerr.Wrap(ragerr.Validation, "decoding request body", err)
	}
	ownerID := req.UserID
	if header := r.Header.Get("X-User-ID"); header != "" {
		ownerID = header
	}
	if err := validation.OwnerID(ownerID); err != nil {
		return chatRequest{}, "", ragerr.New(ragerr.Validation, "user_id must be a UUIDv4")
	}
	if len(req.FileIDs) == 0 {
		return chatRequest{}, "", ragerr.New(ragerr.Validation, "file_ids must not be empty")
	}
	return req, ownerID, nil
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ownerID, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, ragerr.New(ragerr.Internal, "streaming not supported by this response writer"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	em := events.New(32)
	go s.Pipeline.Ask(r.Context(), em, req.SessionID, req.Query, ownerID, req.FileIDs, pipeline.Options{
		Language:        req.Language,
		TopK:            req.TopK,
		EnableExpansion: req.EnableExpansion,
	})

	writer := bufio.NewWriter(w)
	for ev := range em.Events() {
		frame, err := events.MarshalSSE(ev)
		if err != nil {
			continue
		}
		if _, err := writer.Write(frame); err != nil {
			return
		}
		if err := writer.Flush(); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleChatSync(w http.ResponseWriter, r *http.Request) {
	req, ownerID, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.Pipeline.AskSync(r.Context(), req.SessionID, req.Query, ownerID, req.FileIDs, pipeline.Options{
		Language:        req.Language,
		TopK:            req.TopK,
		EnableExpansion: req.EnableExpansion,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events.Complete{
		Answer:            result.Answer,
		ContextCount:      result.ContextCount,
		ExpandedQuestions: result.ExpandedQuestions,
		Truncated:         result.Truncated,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	var ragErr *ragerr.Error
	status := ragerr.HTTPStatus(err)
	code := string(ragerr.KindOf(err))
	message := err.Error()
	if errors.As(err, &ragErr) {
		message = ragErr.Message
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}
