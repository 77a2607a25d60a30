package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattetti/filebuffer"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/preview"
	"github.com/jackzampolin/binder/internal/svcctx"
)

// OutputName is the file name the preview is served under.
const OutputName = "output.pdf"

// RegenerateEndpoint handles POST /api/preview.
type RegenerateEndpoint struct{}

var _ api.Endpoint = (*RegenerateEndpoint)(nil)

func (e *RegenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/preview", e.handler
}

func (e *RegenerateEndpoint) RequiresInit() bool { return true }

func (e *RegenerateEndpoint) Group() string { return "preview" }

// handler godoc
//
//	@Summary		Regenerate preview
//	@Description	Schedule a preview run even when auto-update is off
//	@Tags			preview
//	@Produce		json
//	@Param			wait	query		bool	false	"Block until the run finishes"
//	@Success		200		{object}	preview.Status
//	@Success		202		{object}	preview.Status
//	@Failure		504		{object}	ErrorResponse
//	@Router			/api/preview [post]
func (e *RegenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	regen := svcctx.PreviewFrom(r.Context())
	regen.Request(true)

	if r.URL.Query().Get("wait") != "true" {
		writeJSON(w, http.StatusAccepted, regen.Status())
		return
	}
	if err := regen.Wait(r.Context()); err != nil {
		writeError(w, http.StatusGatewayTimeout, fmt.Sprintf("preview still running: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, regen.Status())
}

func (e *RegenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild the preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/preview"
			if wait {
				path += "?wait=true"
			}
			client := api.NewClient(getServerURL())
			var st preview.Status
			if err := client.Post(cmd.Context(), path, nil, &st); err != nil {
				return err
			}
			if err := api.Output(st); err != nil {
				return err
			}
			if st.State == preview.StateFailed {
				return errors.New(st.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")
	return cmd
}

// PreviewStatusEndpoint handles GET /api/preview/status.
type PreviewStatusEndpoint struct{}

var _ api.Endpoint = (*PreviewStatusEndpoint)(nil)

func (e *PreviewStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/preview/status", e.handler
}

func (e *PreviewStatusEndpoint) RequiresInit() bool { return true }

func (e *PreviewStatusEndpoint) Group() string { return "preview" }

func (e *PreviewStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, svcctx.PreviewFrom(r.Context()).Status())
}

func (e *PreviewStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show preview state and progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var st preview.Status
			if err := client.Get(cmd.Context(), "/api/preview/status", &st); err != nil {
				return err
			}
			return api.Output(st)
		},
	}
}

// PreviewPDFEndpoint handles GET /api/preview/pdf.
type PreviewPDFEndpoint struct{}

var _ api.Endpoint = (*PreviewPDFEndpoint)(nil)

func (e *PreviewPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/preview/pdf", e.handler
}

func (e *PreviewPDFEndpoint) RequiresInit() bool { return true }

func (e *PreviewPDFEndpoint) Group() string { return "preview" }

// handler godoc
//
//	@Summary		Download preview
//	@Description	Serve the latest successful output
//	@Tags			preview
//	@Produce		application/pdf
//	@Success		200
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/preview/pdf [get]
func (e *PreviewPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	regen := svcctx.PreviewFrom(r.Context())
	out := regen.Output()
	if out == nil {
		writeError(w, http.StatusNotFound, "no preview available")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", OutputName))
	http.ServeContent(w, r, OutputName, regen.Status().UpdatedAt, filebuffer.New(out.Data))
}

func (e *PreviewPDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "download [file]",
		Short: "Download the preview PDF",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := OutputName
			if len(args) == 1 {
				dest = args[0]
			}
			f, err := os.Create(dest)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", dest, err)
			}

			client := api.NewClient(getServerURL())
			n, err := client.Download(cmd.Context(), "/api/preview/pdf", f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				os.Remove(dest)
				return err
			}
			fmt.Printf("Wrote %s (%d bytes)\n", dest, n)
			return nil
		},
	}
}

// SaveRequest names where to write the preview. Relative paths and the
// empty path resolve inside the exports directory.
type SaveRequest struct {
	Path string `json:"path,omitempty"`
}

// SaveResponse describes a written file.
type SaveResponse struct {
	Path      string `json:"path"`
	PageCount int    `json:"page_count"`
	Bytes     int    `json:"bytes"`
}

// SavePreviewEndpoint handles POST /api/preview/save.
type SavePreviewEndpoint struct{}

var _ api.Endpoint = (*SavePreviewEndpoint)(nil)

func (e *SavePreviewEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/preview/save", e.handler
}

func (e *SavePreviewEndpoint) RequiresInit() bool { return true }

func (e *SavePreviewEndpoint) Group() string { return "preview" }

// handler godoc
//
//	@Summary		Save preview
//	@Description	Write the latest output to the exports directory or a given path
//	@Tags			preview
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SaveRequest	false	"Destination"
//	@Success		201		{object}	SaveResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/preview/save [post]
func (e *SavePreviewEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out := svcctx.PreviewFrom(r.Context()).Output()
	if out == nil {
		writeError(w, http.StatusNotFound, "no preview available")
		return
	}

	dest, err := exportPath(svcctx.HomeFrom(r.Context()).ExportsDir(), req.Path, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create directory: %v", err))
		return
	}
	if err := os.WriteFile(dest, out.Data, 0o644); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to write output: %v", err))
		return
	}

	if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
		logger.Info("preview saved", "path", dest, "pages", out.PageCount)
	}
	writeJSON(w, http.StatusCreated, SaveResponse{Path: dest, PageCount: out.PageCount, Bytes: len(out.Data)})
}

// exportPath resolves name against exportsDir. Relative names must stay
// inside exportsDir.
func exportPath(exportsDir, name string, now time.Time) (string, error) {
	switch {
	case name == "":
		return filepath.Join(exportsDir, "binder-"+now.Format("20060102-150405")+".pdf"), nil
	case filepath.IsAbs(name):
		return filepath.Clean(name), nil
	}
	dest := filepath.Join(exportsDir, name)
	rel, err := filepath.Rel(exportsDir, dest)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the exports directory", name)
	}
	return dest, nil
}

func (e *SavePreviewEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "save [path]",
		Short: "Save the preview on the server",
		Long: `Save writes the latest preview on the server side. Relative paths
are resolved inside the exports directory of the server's home.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req SaveRequest
			if len(args) == 1 {
				req.Path = args[0]
			}
			client := api.NewClient(getServerURL())
			var resp SaveResponse
			if err := client.Post(cmd.Context(), "/api/preview/save", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
