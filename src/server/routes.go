package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"vigila/src/helpers"
	"vigila/src/models"
	"vigila/src/widget"

	"github.com/danielgtaylor/huma/v2"
)

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	s.registerHealth()
	s.registerWatchlistHandlers()
	s.registerWidgetHandlers()
	s.registerAlertHandlers()

	// WebSocket endpoint
	s.engine.GET("/ws", s.hub.handleWebSocket)
}

// -----------------------------------------------------------------------------

type healthOutput struct {
	Body struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
}

func (s *APIServer) registerHealth() {
	huma.Register(s.api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/health", Summary: "Service health", Tags: []string{"System"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Connections = s.hub.Connections()
			return out, nil
		})
}

// -----------------------------------------------------------------------------
// Watchlist
// -----------------------------------------------------------------------------

type watchlistOutput struct {
	Body models.MWatchlistState
}

func (s *APIServer) registerWatchlistHandlers() {
	huma.Register(s.api, huma.Operation{OperationID: "get-watchlist", Method: http.MethodGet, Path: "/api/v1/watchlist", Summary: "Get the saved Volume watchlist", Tags: []string{"Watchlist"}},
		func(ctx context.Context, input *struct {
			UserHeaders
		}) (*watchlistOutput, error) {
			userID, err := s.identify(ctx, input.UserHeaders)
			if err != nil {
				return nil, err
			}
			view, err := s.Registry.View(ctx, userID)
			if view == nil {
				return nil, mapErr(err)
			}
			// a load failure is reported in the state, not as an HTTP error
			return &watchlistOutput{Body: view.State()}, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "remove-watchlist-symbol", Method: http.MethodDelete, Path: "/api/v1/watchlist/{symbol}", Summary: "Remove a symbol from the watchlist", Tags: []string{"Watchlist"}},
		func(ctx context.Context, input *struct {
			UserHeaders
			Symbol string `path:"symbol"`
		}) (*watchlistOutput, error) {
			userID, err := s.identify(ctx, input.UserHeaders)
			if err != nil {
				return nil, err
			}
			view, err := s.Registry.View(ctx, userID)
			if err != nil {
				return nil, mapErr(err)
			}
			if err := view.RemoveSymbol(ctx, input.Symbol); err != nil {
				if errors.Is(err, helpers.ErrSymbolNotFound) {
					return nil, mapErr(err)
				}
				return nil, huma.Error502BadGateway(widget.RemoveFailedMessage, &huma.ErrorDetail{
					Message:  err.Error(),
					Location: "body.records",
					Value:    view.Snapshot(),
				})
			}
			return &watchlistOutput{Body: view.State()}, nil
		})
}

// -----------------------------------------------------------------------------
// Widgets
// -----------------------------------------------------------------------------

type widgetOutput struct {
	Body models.MWidgetState
}

// WidgetRef addresses one of the caller's widgets.
type WidgetRef struct {
	UserHeaders
	ID string `path:"id" doc:"Widget id"`
}

type proposeOutput struct {
	Body struct {
		Added  bool               `json:"added"`
		Widget models.MWidgetState `json:"widget"`
	}
}

// widget resolves the caller's widget from the path.
func (s *APIServer) widget(ctx context.Context, in WidgetRef) (*widget.Widget, error) {
	userID, err := s.identify(ctx, in.UserHeaders)
	if err != nil {
		return nil, err
	}
	w, err := s.Registry.Widget(userID, in.ID)
	if err != nil {
		return nil, mapErr(err)
	}
	return w, nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) registerWidgetHandlers() {
	huma.Register(s.api, huma.Operation{OperationID: "open-widget", Method: http.MethodPost, Path: "/api/v1/widgets", DefaultStatus: http.StatusCreated, Summary: "Open a symbol selection widget", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *struct {
			UserHeaders
		}) (*widgetOutput, error) {
			userID, err := s.identify(ctx, input.UserHeaders)
			if err != nil {
				return nil, err
			}
			w, err := s.Registry.OpenWidget(ctx, userID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &widgetOutput{Body: w.State()}, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "get-widget", Method: http.MethodGet, Path: "/api/v1/widgets/{id}", Summary: "Get widget state", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *WidgetRef) (*widgetOutput, error) {
			w, err := s.widget(ctx, *input)
			if err != nil {
				return nil, err
			}
			return &widgetOutput{Body: w.State()}, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "set-widget-query", Method: http.MethodPut, Path: "/api/v1/widgets/{id}/query", Summary: "Update the search text", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *struct {
			WidgetRef
			Body struct {
				Query string `json:"query" doc:"Raw search text"`
			}
		}) (*widgetOutput, error) {
			w, err := s.widget(ctx, input.WidgetRef)
			if err != nil {
				return nil, err
			}
			if err := w.Input(input.Body.Query); err != nil {
				return nil, mapErr(err)
			}
			return &widgetOutput{Body: w.State()}, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "propose-symbol", Method: http.MethodPost, Path: "/api/v1/widgets/{id}/selection", Summary: "Add a suggestion to the pending selection", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *struct {
			WidgetRef
			Body struct {
				Record models.MSymbolRecord `json:"record"`
			}
		}) (*proposeOutput, error) {
			w, err := s.widget(ctx, input.WidgetRef)
			if err != nil {
				return nil, err
			}
			added, err := w.Propose(input.Body.Record)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &proposeOutput{}
			out.Body.Added = added
			out.Body.Widget = w.State()
			return out, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "withdraw-symbol", Method: http.MethodDelete, Path: "/api/v1/widgets/{id}/selection/{symbol}", Summary: "Withdraw a pending symbol", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *struct {
			WidgetRef
			Symbol string `path:"symbol"`
		}) (*widgetOutput, error) {
			w, err := s.widget(ctx, input.WidgetRef)
			if err != nil {
				return nil, err
			}
			if _, err := w.Withdraw(input.Symbol); err != nil {
				return nil, mapErr(err)
			}
			return &widgetOutput{Body: w.State()}, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "commit-widget", Method: http.MethodPost, Path: "/api/v1/widgets/{id}/commit", Summary: "Save the pending selection", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *WidgetRef) (*widgetOutput, error) {
			w, err := s.widget(ctx, *input)
			if err != nil {
				return nil, err
			}
			if err := w.Commit(ctx); err != nil {
				if errors.Is(err, helpers.ErrCommitInProgress) || errors.Is(err, helpers.ErrWidgetClosed) ||
					helpers.IsNotAuthenticated(err) {
					return nil, mapErr(err)
				}
				return nil, huma.Error502BadGateway(widget.CommitFailedMessage, err)
			}
			return &widgetOutput{Body: w.State()}, nil
		})

	huma.Register(s.api, huma.Operation{OperationID: "close-widget", Method: http.MethodDelete, Path: "/api/v1/widgets/{id}", Summary: "Close a widget and discard its selection", Tags: []string{"Widgets"}},
		func(ctx context.Context, input *WidgetRef) (*struct{}, error) {
			userID, err := s.identify(ctx, input.UserHeaders)
			if err != nil {
				return nil, err
			}
			if err := s.Registry.CloseWidget(userID, input.ID); err != nil {
				return nil, mapErr(err)
			}
			return &struct{}{}, nil
		})
}

// -----------------------------------------------------------------------------
// Alerts
// -----------------------------------------------------------------------------

type alertReportOutput struct {
	Body models.MAlertReport
}

func (s *APIServer) registerAlertHandlers() {
	huma.Register(s.api, huma.Operation{OperationID: "run-alerts", Method: http.MethodPost, Path: "/api/v1/alerts/run", Summary: "Run the volume alert job now", Tags: []string{"Alerts"}},
		func(ctx context.Context, input *struct {
			Token string `query:"token" doc:"Shared alert token"`
			Force bool   `query:"force" doc:"Run even when the market is closed"`
		}) (*alertReportOutput, error) {
			want := s.Config.Alerts.Token
			if want == "" || subtle.ConstantTimeCompare([]byte(input.Token), []byte(want)) != 1 {
				return nil, huma.Error401Unauthorized("Unauthorized")
			}
			if s.Alerts == nil {
				return nil, huma.Error503ServiceUnavailable("alerts are not configured")
			}
			report, err := s.Alerts.Run(ctx, input.Force)
			if err != nil {
				return nil, mapErr(err)
			}
			return &alertReportOutput{Body: report}, nil
		})
}
