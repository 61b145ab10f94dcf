package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/desertthunder/spm/internal/formatter"
	"github.com/desertthunder/spm/internal/models"
	"github.com/desertthunder/spm/internal/shared"
	"github.com/desertthunder/spm/internal/tasks"
	"github.com/go-playground/validator/v10"
)

// maxUploadBody bounds the whole multipart request; the document itself is bounded by
// [formatter.MaxImportSize].
const maxUploadBody = 2 * formatter.MaxImportSize

var requestValidator = validator.New()

type exportRequest struct {
	Token     string               `json:"token"`
	Playlists []models.PlaylistRef `json:"playlists" validate:"required,min=1,dive"`
}

// handleListPlaylists lists the caller's playlists: GET /api/playlists
func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := SpotifyFrom(r.Context()).UserPlaylists(r.Context())
	if err != nil {
		s.logger.Warn("failed to list playlists", "user", UserFrom(r.Context()).ID, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_failure")
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// handleExport hydrates the requested playlists and answers with the export archive:
// POST /api/playlists/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Reason: "body must be JSON"})
		return
	}
	if err := requestValidator.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Reason: err.Error()})
		return
	}

	ctx := r.Context()
	user := UserFrom(ctx)
	playlists := s.engine.Hydrate(ctx, SpotifyFrom(ctx), user.ID, req.Playlists, nil)
	if err := tasks.HydrationError(playlists); err != nil {
		s.logger.Warn("export finished with errors", "user", user.ID, "error", err)
	}

	var buf bytes.Buffer
	if err := formatter.WriteExportArchive(&buf, playlists); err != nil {
		s.logger.Error("failed to build export archive", "user", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}

	s.recordRun(models.NewExportRun(shared.GenerateID(), user.ID, playlists))

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="export.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleImport replays an uploaded export document on the caller's account: POST /api/import
//
// The document is the first file part of a multipart form. Rejected documents get a 400 with an
// errorType; once processing starts the answer is always the import summary.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)

	doc, err := s.readUpload(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rejectionBody{
			ErrorType: shared.ErrorCode(err),
			Reason:    formatter.RejectionReason(err),
		})
		return
	}

	ctx := r.Context()
	user := UserFrom(ctx)
	summary := s.engine.Import(ctx, SpotifyFrom(ctx), user.ID, doc, nil)

	s.recordRun(models.NewImportRun(shared.GenerateID(), user.ID, summary))
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) readUpload(r *http.Request) ([]models.HydratedPlaylist, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, shared.ErrNoFile
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, shared.ErrNoFile
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, shared.ErrFileTooLarge
			}
			return nil, shared.ErrNoFile
		}
		if part.FileName() == "" {
			part.Close()
			continue
		}
		return readPart(part)
	}
}

func readPart(part *multipart.Part) ([]models.HydratedPlaylist, error) {
	defer part.Close()
	return formatter.ReadImportDocument(part)
}

func (s *Server) recordRun(run models.Run) {
	if s.runs == nil {
		return
	}
	if err := s.runs.Create(&run); err != nil {
		s.logger.Warn("failed to record run", "kind", run.Kind, "user", run.UserID, "error", err)
	}
}
