package grpc_control

import (
	"context"
	"errors"
	"sort"

	"vigila/src/alerts"
	"vigila/src/helpers"
	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ControlService implements ControlServer over the alert job and the store.
type ControlService struct {
	Alerts *alerts.Job // nil when alerts are disabled
	Store  interfaces.IWatchlistStore
	Logger *logger.Logger
}

// NewControlService creates a new instance of ControlService
func NewControlService(job *alerts.Job, store interfaces.IWatchlistStore, log *logger.Logger) *ControlService {
	return &ControlService{
		Alerts: job,
		Store:  store,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

// RunAlerts runs the volume alert job once, honouring the market calendar.
func (s *ControlService) RunAlerts(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	if s.Alerts == nil {
		return nil, status.Error(codes.Unavailable, "alerts are not configured")
	}

	report, err := s.Alerts.Run(ctx, false)
	if err != nil {
		s.Logger.Error("gRPC: RunAlerts failed: %v", err)
		return nil, toStatus(err)
	}

	failures := make([]interface{}, 0, len(report.Failures))
	for _, f := range report.Failures {
		failures = append(failures, f)
	}
	return structpb.NewStruct(map[string]interface{}{
		"users_processed": report.UsersProcessed,
		"symbols_fetched": report.SymbolsFetched,
		"alerts_sent":     report.AlertsSent,
		"failures":        failures,
		"skipped":         report.Skipped,
		"message":         report.Message,
	})
}

// -----------------------------------------------------------------------------

// GetWatchlist returns the persisted Volume records of a user.
func (s *ControlService) GetWatchlist(ctx context.Context, req *wrapperspb.StringValue) (*structpb.ListValue, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "user id is required")
	}

	records, err := s.Store.Fetch(ctx, req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]interface{}, 0, len(records))
	for _, r := range records {
		items = append(items, recordValue(r))
	}
	return structpb.NewList(items)
}

// -----------------------------------------------------------------------------

// GetStatus summarises stored watchlists per user.
func (s *ControlService) GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error) {
	docs, err := s.Store.ListDocuments(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	users := make(map[string]interface{}, len(docs))
	unique := make(map[string]struct{})
	for _, d := range docs {
		users[d.UserID] = len(d.Indicators.Volume)
		for _, r := range d.Indicators.Volume {
			unique[r.Symbol] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(unique))
	for sym := range unique {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	list := make([]interface{}, len(symbols))
	for i, sym := range symbols {
		list[i] = sym
	}

	return structpb.NewStruct(map[string]interface{}{
		"users":          users,
		"symbols":        list,
		"alerts_enabled": s.Alerts != nil,
	})
}

// -----------------------------------------------------------------------------

func recordValue(r models.MSymbolRecord) map[string]interface{} {
	return map[string]interface{}{
		"symbol":           r.Symbol,
		"name":             r.Name,
		"currency":         r.Currency,
		"exchange":         r.Exchange,
		"exchangeFullName": r.ExchangeFullName,
	}
}

// -----------------------------------------------------------------------------

func toStatus(err error) error {
	switch {
	case helpers.IsNotAuthenticated(err):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, alerts.ErrAlreadyRunning):
		return status.Error(codes.FailedPrecondition, err.Error())
	case helpers.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case helpers.IsDatabase(err), helpers.IsNetwork(err):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
