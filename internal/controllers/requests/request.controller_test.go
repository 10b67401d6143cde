package requestController

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ineed/config"
	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/repositories"
	"ineed/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marketplace is an in-memory stand-in for the REST API shared by both roles.
type marketplace struct {
	mu        sync.Mutex
	requests  map[ID]*Request
	calls     map[string]int
	failNext  map[string]error
	listError error
}

func newMarketplace(requests ...Request) *marketplace {
	m := &marketplace{
		requests: make(map[ID]*Request),
		calls:    make(map[string]int),
		failNext: make(map[string]error),
	}
	for _, r := range requests {
		request := r.Clone()
		m.requests[r.ID] = &request
	}
	return m
}

func (m *marketplace) call(name string) error {
	m.calls[name]++
	if err, ok := m.failNext[name]; ok {
		delete(m.failNext, name)
		return err
	}
	return nil
}

func (m *marketplace) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *marketplace) find(id ID) (*Request, error) {
	request, ok := m.requests[id]
	if !ok {
		return nil, apperrors.Rejected(404, "Request not found")
	}
	return request, nil
}

func (m *marketplace) ListRequests(ctx context.Context, role Role, scope RequestScope) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["ListRequests"]++
	if m.listError != nil {
		return nil, m.listError
	}

	result := make([]Request, 0, len(m.requests))
	for _, request := range m.requests {
		result = append(result, request.Clone())
	}
	return result, nil
}

func (m *marketplace) GetRequest(ctx context.Context, role Role, id ID) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("GetRequest"); err != nil {
		return Request{}, err
	}
	request, err := m.find(id)
	if err != nil {
		return Request{}, err
	}
	return request.Clone(), nil
}

func (m *marketplace) SelectProfessional(ctx context.Context, requestID, professionalID ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SelectProfessional"); err != nil {
		return err
	}
	request, err := m.find(requestID)
	if err != nil {
		return err
	}
	request.ProfessionalID = professionalID
	return nil
}

func (m *marketplace) CancelAsClient(ctx context.Context, requestID ID, input ClientCancellation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CancelAsClient"); err != nil {
		return err
	}
	request, err := m.find(requestID)
	if err != nil {
		return err
	}
	request.Status = StatusCancelled
	return nil
}

func (m *marketplace) CancelAsProfessional(ctx context.Context, requestID ID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CancelAsProfessional"); err != nil {
		return err
	}
	request, err := m.find(requestID)
	if err != nil {
		return err
	}
	request.Status = StatusCancelled
	request.CancelReason = reason
	return nil
}

func (m *marketplace) FinishRequest(ctx context.Context, requestID ID, report FinishReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("FinishRequest"); err != nil {
		return err
	}
	request, err := m.find(requestID)
	if err != nil {
		return err
	}
	request.ApplyFinish(report)
	return nil
}

func (m *marketplace) SubmitQuotation(ctx context.Context, requestID ID, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SubmitQuotation"); err != nil {
		return err
	}
	request, err := m.find(requestID)
	if err != nil {
		return err
	}
	request.Quotations = append(request.Quotations, Quotation{ProfessionalID: "p1", Price: price})
	return nil
}

func (m *marketplace) ValidateRating(ctx context.Context, requestID ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call("ValidateRating")
}

func (m *marketplace) RateProfessional(ctx context.Context, requestID ID, rating Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.call("RateProfessional")
}

type noChatTokens struct{}

func (noChatTokens) Token(ctx context.Context, identity Identity) (string, error) {
	return "", errors.New("chat disabled")
}

func (noChatTokens) Invalidate(ctx context.Context, identity Identity) {}

type noChat struct{}

func (noChat) Connect(ctx context.Context, identity Identity, token string) (services.ChatConnection, error) {
	return nil, errors.New("chat disabled")
}

func newTestSession(identity Identity) *services.Session {
	return &services.Session{
		Identity: identity,
		Requests: repositories.NewRequestRepository(),
		Unread:   services.NewUnreadAggregator(identity, noChatTokens{}, noChat{}, nil),
		OpenedAt: time.Now(),
	}
}

var (
	client       = Identity{Role: RoleClient, UserID: "c1"}
	professional = Identity{Role: RoleProfessional, UserID: "p1"}
)

func openRequest() Request {
	return Request{ID: "100", Status: StatusOpen, ClientID: "c1", City: "Haifa"}
}

func TestRequestLifecycle_QuoteSelectFinish(t *testing.T) {
	ctx := context.Background()
	api := newMarketplace(openRequest())
	controller := New(api, config.Config{})

	clientSession := newTestSession(client)
	professionalSession := newTestSession(professional)

	quoted, err := controller.SubmitQuotation(ctx, professionalSession, "100", QuotationInput{Price: decimal.NewFromInt(500)})
	require.NoError(t, err)
	price, ok := quoted.OwnQuotation("p1")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(500)))

	selected, err := controller.SelectProfessional(ctx, clientSession, "100", SelectionInput{ProfessionalID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, ID("p1"), selected.ProfessionalID)
	assert.Equal(t, StatusOpen, selected.Status)

	_, err = controller.GetRequest(ctx, professionalSession, "100")
	require.NoError(t, err)

	completion := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished, err := controller.FinishRequest(ctx, professionalSession, "100", FinishReport{
		CompletionDate: completion,
		WorkCost:       decimal.NewFromInt(450),
		Comment:        "done",
		ImageURLs:      []string{"https://img/1.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, finished.Status)
	assert.Equal(t, []string{"https://img/1.jpg"}, finished.ImageURLs)

	_, err = controller.FinishRequest(ctx, professionalSession, "100", FinishReport{CompletionDate: completion})
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransition))
	assert.Equal(t, 1, api.count("FinishRequest"))
}

func TestRequestLifecycle_ProfessionalCancelBlocksFinish(t *testing.T) {
	ctx := context.Background()
	request := openRequest()
	request.ProfessionalID = "p1"
	api := newMarketplace(request)
	controller := New(api, config.Config{})
	session := newTestSession(professional)

	cancelled, err := controller.CancelAsProfessional(ctx, session, "100", ProfessionalCancellation{Reason: "no longer available"})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "no longer available", cancelled.CancelReason)

	_, err = controller.FinishRequest(ctx, session, "100", FinishReport{CompletionDate: time.Now()})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindTransition))
	assert.Zero(t, api.count("FinishRequest"))
}

func TestSelectProfessional_RequiresQuotation(t *testing.T) {
	ctx := context.Background()
	api := newMarketplace(openRequest())
	controller := New(api, config.Config{})

	_, err := controller.SelectProfessional(ctx, newTestSession(client), "100", SelectionInput{ProfessionalID: "p9"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeUnknownQuotation, apperrors.From(err).Code)
	assert.Zero(t, api.count("SelectProfessional"))
}

func TestSelectProfessional_FailureRestoresPreviousAssignee(t *testing.T) {
	ctx := context.Background()
	request := openRequest()
	request.ProfessionalID = "p1"
	request.Quotations = []Quotation{
		{ProfessionalID: "p1", Price: decimal.NewFromInt(300)},
		{ProfessionalID: "p2", Price: decimal.NewFromInt(250)},
	}
	api := newMarketplace(request)
	api.failNext["SelectProfessional"] = apperrors.Rejected(400, "Professional unavailable")
	controller := New(api, config.Config{})
	session := newTestSession(client)

	updated, err := controller.SelectProfessional(ctx, session, "100", SelectionInput{ProfessionalID: "p2"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindRequest))
	assert.Equal(t, ID("p1"), updated.ProfessionalID)

	stored, ok := session.Requests.Get("100")
	require.True(t, ok)
	assert.Equal(t, ID("p1"), stored.ProfessionalID)
}

func TestSubmitQuotation_Rules(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects fractional price without a call", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})

		_, err := controller.SubmitQuotation(ctx, newTestSession(professional), "100",
			QuotationInput{Price: decimal.RequireFromString("10.5")})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
		assert.Zero(t, api.count("SubmitQuotation"))
	})

	t.Run("second quotation is rejected locally", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})
		session := newTestSession(professional)

		_, err := controller.SubmitQuotation(ctx, session, "100", QuotationInput{Price: decimal.NewFromInt(200)})
		require.NoError(t, err)

		_, err = controller.SubmitQuotation(ctx, session, "100", QuotationInput{Price: decimal.NewFromInt(180)})
		assert.Equal(t, apperrors.CodeAlreadyQuoted, apperrors.From(err).Code)
		assert.Equal(t, 1, api.count("SubmitQuotation"))
	})

	t.Run("failed reload records price locally", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})
		session := newTestSession(professional)

		_, err := controller.GetRequest(ctx, session, "100")
		require.NoError(t, err)
		api.failNext["GetRequest"] = apperrors.Network(errors.New("timeout"), "Failed to fetch request details")

		updated, err := controller.SubmitQuotation(ctx, session, "100", QuotationInput{Price: decimal.NewFromInt(90)})
		require.NoError(t, err)
		price, ok := updated.OwnQuotation("p1")
		require.True(t, ok)
		assert.True(t, price.Equal(decimal.NewFromInt(90)))
	})
}

func TestFinishRequest_Policy(t *testing.T) {
	ctx := context.Background()
	assigned := openRequest()
	assigned.ProfessionalID = "p1"
	report := FinishReport{CompletionDate: time.Now(), WorkCost: decimal.NewFromInt(100)}

	t.Run("loose policy finishes an open request", func(t *testing.T) {
		controller := New(newMarketplace(assigned), config.Config{})

		finished, err := controller.FinishRequest(ctx, newTestSession(professional), "100", report)
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, finished.Status)
	})

	t.Run("strict policy requires in-process", func(t *testing.T) {
		api := newMarketplace(assigned)
		controller := New(api, config.Config{FinishRequiresInProcess: true})

		_, err := controller.FinishRequest(ctx, newTestSession(professional), "100", report)
		assert.Equal(t, apperrors.CodeInvalidStatus, apperrors.From(err).Code)
		assert.Zero(t, api.count("FinishRequest"))
	})

	t.Run("other professional cannot finish", func(t *testing.T) {
		api := newMarketplace(assigned)
		controller := New(api, config.Config{})

		_, err := controller.FinishRequest(ctx, newTestSession(Identity{Role: RoleProfessional, UserID: "p2"}), "100", report)
		assert.Equal(t, apperrors.CodeNotAssigned, apperrors.From(err).Code)
	})

	t.Run("negative cost is invalid", func(t *testing.T) {
		api := newMarketplace(assigned)
		controller := New(api, config.Config{})

		_, err := controller.FinishRequest(ctx, newTestSession(professional), "100",
			FinishReport{CompletionDate: time.Now(), WorkCost: decimal.NewFromInt(-1)})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})
}

func TestCancelAsClient(t *testing.T) {
	ctx := context.Background()

	t.Run("blank reason", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})

		_, err := controller.CancelAsClient(ctx, newTestSession(client), "100", ClientCancellation{Reason: "  "})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
		assert.Zero(t, api.count("CancelAsClient"))
	})

	t.Run("server refusal keeps status", func(t *testing.T) {
		api := newMarketplace(openRequest())
		api.failNext["CancelAsClient"] = apperrors.Rejected(400, "Too late to cancel")
		controller := New(api, config.Config{})
		session := newTestSession(client)

		_, err := controller.CancelAsClient(ctx, session, "100", ClientCancellation{Reason: "changed my mind"})
		require.Error(t, err)
		assert.Equal(t, "Too late to cancel", apperrors.From(err).Message)

		stored, ok := session.Requests.Get("100")
		require.True(t, ok)
		assert.Equal(t, StatusOpen, stored.Status)
	})

	t.Run("wrong role", func(t *testing.T) {
		controller := New(newMarketplace(openRequest()), config.Config{})

		_, err := controller.CancelAsClient(ctx, newTestSession(professional), "100", ClientCancellation{Reason: "x"})
		assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))
	})
}

func TestRateProfessional(t *testing.T) {
	ctx := context.Background()

	t.Run("only closed requests", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})

		err := controller.RateProfessional(ctx, newTestSession(client), "100", DefaultRating())
		assert.True(t, apperrors.IsKind(err, apperrors.KindTransition))
		assert.Zero(t, api.count("ValidateRating"))
	})

	t.Run("validates then rates", func(t *testing.T) {
		closed := openRequest()
		closed.Status = StatusClosed
		api := newMarketplace(closed)
		controller := New(api, config.Config{})

		err := controller.RateProfessional(ctx, newTestSession(client), "100",
			Rating{QualityRating: 5, ProfessionalismRating: 4, PriceRating: 3})
		require.NoError(t, err)
		assert.Equal(t, 1, api.count("ValidateRating"))
		assert.Equal(t, 1, api.count("RateProfessional"))
	})

	t.Run("out of range", func(t *testing.T) {
		closed := openRequest()
		closed.Status = StatusClosed
		controller := New(newMarketplace(closed), config.Config{})

		err := controller.RateProfessional(ctx, newTestSession(client), "100", Rating{QualityRating: 6, ProfessionalismRating: 1, PriceRating: 1})
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})
}

func TestListRequests(t *testing.T) {
	ctx := context.Background()

	t.Run("serves last known listing when unreachable", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})
		session := newTestSession(client)

		first, err := controller.ListRequests(ctx, session, ScopeOpen)
		require.NoError(t, err)
		require.Len(t, first, 1)

		api.mu.Lock()
		api.listError = apperrors.Network(errors.New("timeout"), "Failed to fetch requests")
		api.mu.Unlock()

		second, err := controller.ListRequests(ctx, session, ScopeOpen)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("rejects unknown scope", func(t *testing.T) {
		controller := New(newMarketplace(), config.Config{})

		_, err := controller.ListRequests(ctx, newTestSession(client), ScopeChat)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	})

	t.Run("status never regresses", func(t *testing.T) {
		api := newMarketplace(openRequest())
		controller := New(api, config.Config{})
		session := newTestSession(client)

		_, err := controller.CancelAsClient(ctx, session, "100", ClientCancellation{Reason: "moved"})
		require.NoError(t, err)

		api.mu.Lock()
		api.requests["100"].Status = StatusOpen
		api.mu.Unlock()

		listed, err := controller.ListRequests(ctx, session, ScopeOpen)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, StatusCancelled, listed[0].Status)
	})
}
