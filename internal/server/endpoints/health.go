package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/binder/internal/api"
	"github.com/jackzampolin/binder/internal/preview"
	"github.com/jackzampolin/binder/internal/section"
	"github.com/jackzampolin/binder/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server   string          `json:"server"`
	Flatten  FlattenStatus   `json:"flatten"`
	Sections SectionsSummary `json:"sections"`
	Preview  *preview.Status `json:"preview,omitempty"`
}

// FlattenStatus shows the selected engine and whether it can run.
type FlattenStatus struct {
	Engine    string `json:"engine"`
	Available bool   `json:"available"`
}

// SectionsSummary counts the current sections.
type SectionsSummary struct {
	Count      int    `json:"count"`
	TotalPages int    `json:"total_pages"`
	Version    uint64 `json:"version"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if svc := svcctx.ServicesFrom(r.Context()); svc == nil {
		resp.Server = "initializing"
		resp.Flatten.Engine = "not_initialized"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if fl := svcctx.FlattenerFrom(r.Context()); fl != nil {
		resp.Flatten.Engine = fl.Engine()
		resp.Flatten.Available = fl.Available(r.Context())
	}

	if list := svcctx.SectionsFrom(r.Context()); list != nil {
		sections, version := list.Snapshot()
		resp.Sections = SectionsSummary{
			Count:      len(sections),
			TotalPages: section.TotalPages(sections),
			Version:    version,
		}
	}

	if regen := svcctx.PreviewFrom(r.Context()); regen != nil {
		st := regen.Status()
		resp.Preview = &st
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Flatten:\n")
			fmt.Printf("  Engine:    %s\n", resp.Flatten.Engine)
			fmt.Printf("  Available: %t\n", resp.Flatten.Available)
			fmt.Printf("Sections:\n")
			fmt.Printf("  Count: %d\n", resp.Sections.Count)
			fmt.Printf("  Pages: %d\n", resp.Sections.TotalPages)
			if resp.Preview != nil {
				fmt.Printf("Preview:\n")
				fmt.Printf("  State:      %s\n", resp.Preview.State)
				fmt.Printf("  Generation: %d\n", resp.Preview.Generation)
				fmt.Printf("  Pages:      %d\n", resp.Preview.PageCount)
				if resp.Preview.Error != "" {
					fmt.Printf("  Error:      %s\n", resp.Preview.Error)
				}
			}
			return nil
		},
	}
}
