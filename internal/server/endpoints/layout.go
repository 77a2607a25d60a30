package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/layout"
	"github.com/jackzampolin/binder/internal/svcctx"
)

// GetLayoutEndpoint handles GET /api/layout.
type GetLayoutEndpoint struct{}

var _ api.Endpoint = (*GetLayoutEndpoint)(nil)

func (e *GetLayoutEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/layout", e.handler
}

func (e *GetLayoutEndpoint) RequiresInit() bool { return true }

func (e *GetLayoutEndpoint) Group() string { return "layout" }

// handler godoc
//
//	@Summary		Get layout
//	@Description	Get the numbering layout used by the preview
//	@Tags			layout
//	@Produce		json
//	@Success		200	{object}	layout.Config
//	@Router			/api/layout [get]
func (e *GetLayoutEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, svcctx.PreviewFrom(r.Context()).Layout())
}

func (e *GetLayoutEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var cfg layout.Config
			if err := client.Get(cmd.Context(), "/api/layout", &cfg); err != nil {
				return err
			}
			return api.Output(cfg)
		},
	}
}

// UpdateLayoutEndpoint handles PATCH /api/layout.
// The body is merged onto the current layout; absent keys are unchanged.
type UpdateLayoutEndpoint struct{}

var _ api.Endpoint = (*UpdateLayoutEndpoint)(nil)

func (e *UpdateLayoutEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/layout", e.handler
}

func (e *UpdateLayoutEndpoint) RequiresInit() bool { return true }

func (e *UpdateLayoutEndpoint) Group() string { return "layout" }

// handler godoc
//
//	@Summary		Update layout
//	@Description	Partially update the numbering layout and invalidate the preview
//	@Tags			layout
//	@Accept			json
//	@Produce		json
//	@Param			request	body		layout.Config	true	"Layout fields to change"
//	@Success		200		{object}	layout.Config
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/layout [patch]
func (e *UpdateLayoutEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	regen := svcctx.PreviewFrom(r.Context())

	cfg, err := mergeLayout(regen.Layout(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := regen.SetLayout(cfg); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, regen.Layout())
}

// mergeLayout decodes body over base. Unknown keys are rejected.
func mergeLayout(base layout.Config, body io.Reader) (layout.Config, error) {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&base); err != nil {
		if errors.Is(err, io.EOF) {
			return base, errors.New("empty request body")
		}
		return base, fmt.Errorf("invalid request body: %v", err)
	}
	return base, nil
}

func (e *UpdateLayoutEndpoint) Command(getServerURL func() string) *cobra.Command {
	var flags *layout.Flags
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change layout options",
		Example: `  binder api layout set --position top-right --margin 18
  binder api layout set --format "p. {page}" --blank-page=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !flags.Changed() {
				return errors.New("no layout flags given")
			}
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())

			var current layout.Config
			if err := client.Get(ctx, "/api/layout", &current); err != nil {
				return err
			}
			next, err := flags.Apply(current)
			if err != nil {
				return err
			}

			var updated layout.Config
			if err := client.Patch(ctx, "/api/layout", next, &updated); err != nil {
				return err
			}
			return api.Output(updated)
		},
	}
	flags = layout.AddFlags(cmd.Flags())
	return cmd
}
