package endpoints

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/home"
	"github.com/jackzampolin/binder/internal/section"
	"github.com/jackzampolin/binder/internal/svcctx"
)

// SectionsResponse is the response for section list operations.
type SectionsResponse struct {
	Sections   []section.Section `json:"sections"`
	TotalPages int               `json:"total_pages"`
	Version    uint64            `json:"version"`
}

func sectionsResponse(list *section.List) SectionsResponse {
	sections, version := list.Snapshot()
	if sections == nil {
		sections = []section.Section{}
	}
	return SectionsResponse{
		Sections:   sections,
		TotalPages: section.TotalPages(sections),
		Version:    version,
	}
}

// AddSectionsEndpoint handles POST /api/sections with multipart file upload.
// Each uploaded PDF becomes one section appended to the list.
type AddSectionsEndpoint struct{}

var _ api.Endpoint = (*AddSectionsEndpoint)(nil)

func (e *AddSectionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sections", e.handler
}

func (e *AddSectionsEndpoint) RequiresInit() bool { return true }

func (e *AddSectionsEndpoint) Group() string { return "sections" }

// handler godoc
//
//	@Summary		Upload sections
//	@Description	Upload PDF files; each becomes a section at the end of the list
//	@Tags			sections
//	@Accept			mpfd
//	@Produce		json
//	@Param			files	formData	file	true	"PDF files"
//	@Success		201		{object}	SectionsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/sections [post]
func (e *AddSectionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form with 64MB max memory; larger parts spill to disk
	const maxMemory = 64 << 20
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}
	for _, fh := range files {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", fh.Filename))
			return
		}
	}

	list := svcctx.SectionsFrom(r.Context())
	homeDir := svcctx.HomeFrom(r.Context())
	logger := svcctx.LoggerFrom(r.Context())

	pending, err := storeUploads(homeDir, logger, files)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	added := list.Append(pending...)
	if _, err := list.ResolvePageCounts(r.Context(), section.CountPages, logger); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to count pages: %v", err))
		return
	}
	if logger != nil {
		logger.Info("sections added", "count", len(added))
	}

	writeJSON(w, http.StatusCreated, sectionsResponse(list))
}

// storeUploads copies files into the home directory so sources outlive the
// request. Each section's documents live under its ID and go away with it.
// On error nothing stays on disk.
func storeUploads(homeDir *home.Dir, logger *slog.Logger, files []*multipart.FileHeader) ([]section.Section, error) {
	stored := make([]section.Section, 0, len(files))
	for _, fh := range files {
		id := uuid.NewString()
		dest := homeDir.UploadPath(id, fh.Filename)
		if err := saveUpload(fh, dest); err != nil {
			removeUploads(homeDir, logger, append(stored, section.Section{ID: id}))
			return nil, err
		}
		src := section.FileSource{Path: dest}
		stored = append(stored, section.Section{ID: id, Name: src.Name(), Source: src, Enabled: true})
	}
	return stored, nil
}

// removeUploads deletes the stored documents of sections. Failures are
// logged and otherwise ignored.
func removeUploads(homeDir *home.Dir, logger *slog.Logger, sections []section.Section) {
	if homeDir == nil {
		return
	}
	for _, s := range sections {
		if err := homeDir.RemoveUpload(s.ID); err != nil && logger != nil {
			logger.Warn("failed to remove upload", "section", s.ID, "error", err)
		}
	}
}

func saveUpload(fh *multipart.FileHeader, dest string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to save file: %w", err)
	}
	return dst.Close()
}

func (e *AddSectionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file.pdf>...",
		Short: "Upload PDFs as new sections",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SectionsResponse
			if err := client.Upload(cmd.Context(), "/api/sections", "files", args, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ListSectionsEndpoint handles GET /api/sections.
type ListSectionsEndpoint struct{}

var _ api.Endpoint = (*ListSectionsEndpoint)(nil)

func (e *ListSectionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/sections", e.handler
}

func (e *ListSectionsEndpoint) RequiresInit() bool { return true }

func (e *ListSectionsEndpoint) Group() string { return "sections" }

// handler godoc
//
//	@Summary		List sections
//	@Description	Get the ordered section list
//	@Tags			sections
//	@Produce		json
//	@Success		200	{object}	SectionsResponse
//	@Router			/api/sections [get]
func (e *ListSectionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sectionsResponse(svcctx.SectionsFrom(r.Context())))
}

func (e *ListSectionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sections in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SectionsResponse
			if err := client.Get(cmd.Context(), "/api/sections", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ClearSectionsEndpoint handles DELETE /api/sections.
type ClearSectionsEndpoint struct{}

var _ api.Endpoint = (*ClearSectionsEndpoint)(nil)

func (e *ClearSectionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/sections", e.handler
}

func (e *ClearSectionsEndpoint) RequiresInit() bool { return true }

func (e *ClearSectionsEndpoint) Group() string { return "sections" }

func (e *ClearSectionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	list := svcctx.SectionsFrom(r.Context())
	removeUploads(svcctx.HomeFrom(r.Context()), svcctx.LoggerFrom(r.Context()), list.Clear())
	writeJSON(w, http.StatusOK, sectionsResponse(list))
}

func (e *ClearSectionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every section",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SectionsResponse
			if err := client.Delete(cmd.Context(), "/api/sections", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
