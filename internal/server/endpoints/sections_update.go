package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/section"
	"github.com/jackzampolin/binder/internal/svcctx"
)

// UpdateSectionRequest is the request body for updating a section.
// Nil fields are left unchanged.
type UpdateSectionRequest struct {
	Number  *string `json:"number,omitempty"`
	Enabled *bool   `json:"enabled,omitempty"`
}

// UpdateSectionEndpoint handles PATCH /api/sections/{id}.
type UpdateSectionEndpoint struct{}

var _ api.Endpoint = (*UpdateSectionEndpoint)(nil)

func (e *UpdateSectionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/sections/{id}", e.handler
}

func (e *UpdateSectionEndpoint) RequiresInit() bool { return true }

func (e *UpdateSectionEndpoint) Group() string { return "sections" }

// handler godoc
//
//	@Summary		Update a section
//	@Description	Change the section number or toggle page numbering
//	@Tags			sections
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Section ID"
//	@Param			request	body		UpdateSectionRequest	true	"Update request"
//	@Success		200		{object}	section.Section
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sections/{id} [patch]
func (e *UpdateSectionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req UpdateSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Number == nil && req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "number or enabled is required")
		return
	}

	list := svcctx.SectionsFrom(r.Context())
	if req.Number != nil {
		if err := list.SetNumber(id, *req.Number); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}
	if req.Enabled != nil {
		if err := list.SetEnabled(id, *req.Enabled); err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
	}

	s, err := list.Get(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (e *UpdateSectionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var number string
	var enabled bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a section's number or numbering toggle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req UpdateSectionRequest
			if cmd.Flags().Changed("number") {
				req.Number = &number
			}
			if cmd.Flags().Changed("enabled") {
				req.Enabled = &enabled
			}
			if req.Number == nil && req.Enabled == nil {
				return errors.New("at least --number or --enabled must be specified")
			}
			client := api.NewClient(getServerURL())
			var s section.Section
			if err := client.Patch(cmd.Context(), "/api/sections/"+args[0], req, &s); err != nil {
				return err
			}
			return api.Output(s)
		},
	}
	cmd.Flags().StringVar(&number, "number", "", "Section number shown in labels")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Stamp page numbers on this section")
	return cmd
}

// MoveSectionRequest moves a section to an absolute index or one step.
type MoveSectionRequest struct {
	To        *int   `json:"to,omitempty"`
	Direction string `json:"direction,omitempty"` // up or down
}

// MoveSectionEndpoint handles POST /api/sections/{id}/move.
type MoveSectionEndpoint struct{}

var _ api.Endpoint = (*MoveSectionEndpoint)(nil)

func (e *MoveSectionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/sections/{id}/move", e.handler
}

func (e *MoveSectionEndpoint) RequiresInit() bool { return true }

func (e *MoveSectionEndpoint) Group() string { return "sections" }

// handler godoc
//
//	@Summary		Move a section
//	@Description	Reorder a section by target index or by one step up or down
//	@Tags			sections
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Section ID"
//	@Param			request	body		MoveSectionRequest	true	"Move request"
//	@Success		200		{object}	SectionsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/sections/{id}/move [post]
func (e *MoveSectionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req MoveSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	list := svcctx.SectionsFrom(r.Context())
	from := list.Index(id)
	if from < 0 {
		writeError(w, http.StatusNotFound, section.ErrNotFound.Error())
		return
	}

	var err error
	switch {
	case req.To != nil:
		err = list.Move(from, *req.To)
	case req.Direction == "up":
		err = list.MoveUp(from)
	case req.Direction == "down":
		err = list.MoveDown(from)
	default:
		writeError(w, http.StatusBadRequest, `to or direction ("up", "down") is required`)
		return
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, sectionsResponse(list))
}

func (e *MoveSectionEndpoint) Command(getServerURL func() string) *cobra.Command {
	var to int
	var up, down bool
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a section to a new position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req MoveSectionRequest
			switch {
			case cmd.Flags().Changed("to"):
				req.To = &to
			case up:
				req.Direction = "up"
			case down:
				req.Direction = "down"
			default:
				return errors.New("one of --to, --up or --down must be specified")
			}
			client := api.NewClient(getServerURL())
			var resp SectionsResponse
			if err := client.Post(cmd.Context(), "/api/sections/"+args[0]+"/move", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&to, "to", 0, "Target index (0-based)")
	cmd.Flags().BoolVar(&up, "up", false, "Move one position towards the start")
	cmd.Flags().BoolVar(&down, "down", false, "Move one position towards the end")
	cmd.MarkFlagsMutuallyExclusive("to", "up", "down")
	return cmd
}

// RemoveSectionEndpoint handles DELETE /api/sections/{id}.
type RemoveSectionEndpoint struct{}

var _ api.Endpoint = (*RemoveSectionEndpoint)(nil)

func (e *RemoveSectionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/sections/{id}", e.handler
}

func (e *RemoveSectionEndpoint) RequiresInit() bool { return true }

func (e *RemoveSectionEndpoint) Group() string { return "sections" }

func (e *RemoveSectionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	list := svcctx.SectionsFrom(r.Context())
	id := r.PathValue("id")
	if err := list.Remove(id); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	removeUploads(svcctx.HomeFrom(r.Context()), svcctx.LoggerFrom(r.Context()), []section.Section{{ID: id}})
	writeJSON(w, http.StatusOK, sectionsResponse(list))
}

func (e *RemoveSectionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SectionsResponse
			if err := client.Delete(cmd.Context(), "/api/sections/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
