package requestController

import (
	"context"
	"fmt"

	"ineed/config"
	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/services"
	"ineed/internal/validator"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/shopspring/decimal"
)

type RequestAPI interface {
	ListRequests(ctx context.Context, role Role, scope RequestScope) ([]Request, error)
	GetRequest(ctx context.Context, role Role, id ID) (Request, error)
	SelectProfessional(ctx context.Context, requestID, professionalID ID) error
	CancelAsClient(ctx context.Context, requestID ID, input ClientCancellation) error
	CancelAsProfessional(ctx context.Context, requestID ID, reason string) error
	FinishRequest(ctx context.Context, requestID ID, report FinishReport) error
	SubmitQuotation(ctx context.Context, requestID ID, price decimal.Decimal) error
	ValidateRating(ctx context.Context, requestID ID) error
	RateProfessional(ctx context.Context, requestID ID, rating Rating) error
}

type RequestControllerInterface interface {
	ListRequests(ctx context.Context, session *services.Session, scope RequestScope) ([]Request, error)
	GetRequest(ctx context.Context, session *services.Session, id ID) (Request, error)
	SelectProfessional(ctx context.Context, session *services.Session, id ID, input SelectionInput) (Request, error)
	CancelAsClient(ctx context.Context, session *services.Session, id ID, input ClientCancellation) (Request, error)
	CancelAsProfessional(
		ctx context.Context,
		session *services.Session,
		id ID,
		input ProfessionalCancellation,
	) (Request, error)
	FinishRequest(ctx context.Context, session *services.Session, id ID, report FinishReport) (Request, error)
	SubmitQuotation(ctx context.Context, session *services.Session, id ID, input QuotationInput) (Request, error)
	RateProfessional(ctx context.Context, session *services.Session, id ID, rating Rating) error
	ChatOpened(ctx context.Context, session *services.Session, id ID)
}

type RequestController struct {
	api          RequestAPI
	validator    *validator.Validator
	finishPolicy FinishPolicy
	log          logger.Logger
}

func New(api RequestAPI, config config.Config) RequestControllerInterface {
	policy := FinishLoose
	if config.FinishRequiresInProcess {
		policy = FinishStrict
	}

	return &RequestController{
		api:          api,
		validator:    validator.New(),
		finishPolicy: policy,
		log:          logger.New("requestController"),
	}
}

func requireRole(session *services.Session, role Role) error {
	if session.Identity.Role != role {
		return apperrors.New(
			apperrors.KindAuth,
			apperrors.CodeForbidden,
			fmt.Sprintf("Only a %s can do this", role),
		)
	}
	return nil
}

// ListRequests loads a listing, reconciles it into the session store and merges
// the unread chat counts of the listed requests. When the API is unreachable the
// last known listing is served.
func (c *RequestController) ListRequests(
	ctx context.Context,
	session *services.Session,
	scope RequestScope,
) ([]Request, error) {
	log := c.log.TraceFromContext(ctx).Function("ListRequests")

	role := session.Identity.Role
	scope = NormalizeScope(role, scope)
	if !scope.ValidFor(role) {
		return nil, apperrors.Validation(
			fmt.Sprintf("Unknown listing %q", scope),
			map[string]string{"scope": "Unknown listing"},
		)
	}

	requests, err := c.api.ListRequests(ctx, role, scope)
	switch {
	case apperrors.IsKind(err, apperrors.KindNetwork):
		log.Warn("Listing unavailable, serving last known requests", "scope", scope, "error", err)
	case err != nil:
		return nil, log.Err("failed to list requests", err, "scope", scope)
	default:
		session.Requests.Reconcile(scope, requests)
	}

	ids := session.Requests.IDs(scope)
	counts := session.Unread.GetUnreadCounts(ctx, session.Identity, "", ids)
	session.Requests.MergeUnread(ids, counts)

	return session.Requests.List(scope), nil
}

func (c *RequestController) GetRequest(ctx context.Context, session *services.Session, id ID) (Request, error) {
	log := c.log.TraceFromContext(ctx).Function("GetRequest")

	request, err := c.api.GetRequest(ctx, session.Identity.Role, id)
	if err != nil {
		if known, ok := session.Requests.Get(id); ok && apperrors.IsKind(err, apperrors.KindNetwork) {
			log.Warn("Detail unavailable, serving last known request", "requestID", id, "error", err)
			return known, nil
		}
		return Request{}, log.Err("failed to get request", err, "requestID", id)
	}

	return session.Requests.Upsert(request), nil
}

// known returns the locally observed request, loading it once when the session has
// not seen it yet.
func (c *RequestController) known(ctx context.Context, session *services.Session, id ID) (Request, error) {
	if request, ok := session.Requests.Get(id); ok {
		return request, nil
	}
	return c.GetRequest(ctx, session, id)
}

// SelectProfessional shows the chosen professional right away and puts the
// previous assignee back when the server refuses.
func (c *RequestController) SelectProfessional(
	ctx context.Context,
	session *services.Session,
	id ID,
	input SelectionInput,
) (Request, error) {
	log := c.log.TraceFromContext(ctx).Function("SelectProfessional")

	if err := requireRole(session, RoleClient); err != nil {
		return Request{}, err
	}
	if err := c.validator.Validate(input); err != nil {
		return Request{}, err
	}

	request, err := c.known(ctx, session, id)
	if err != nil {
		return Request{}, err
	}
	if err := request.CheckSelectProfessional(input.ProfessionalID); err != nil {
		return Request{}, err
	}

	var selection Optimistic[ID]
	if request.HasProfessional() {
		previous := request.ProfessionalID
		selection.Confirmed = &previous
	}
	selection = selection.Propose(input.ProfessionalID)
	c.showSelection(session, id, selection)

	outcome := OutcomeConfirmed
	callErr := c.api.SelectProfessional(ctx, id, input.ProfessionalID)
	if callErr != nil {
		outcome = OutcomeFailed
	}
	selection = selection.Resolve(outcome, SelectionPolicy[ID])
	updated := c.showSelection(session, id, selection)

	if callErr != nil {
		return updated, log.Err("failed to select professional", callErr,
			"requestID", id, "professionalID", input.ProfessionalID)
	}

	log.Info("Professional selected", "requestID", id, "professionalID", input.ProfessionalID)
	return updated, nil
}

func (c *RequestController) showSelection(session *services.Session, id ID, selection Optimistic[ID]) Request {
	assignee, _ := selection.Value()
	updated, err := session.Requests.Apply(id, func(request *Request) error {
		request.ApplySelection(assignee)
		return nil
	})
	if err != nil {
		c.log.Function("showSelection").Er("failed to show selection", err, "requestID", id)
	}
	return updated
}

func (c *RequestController) CancelAsClient(
	ctx context.Context,
	session *services.Session,
	id ID,
	input ClientCancellation,
) (Request, error) {
	log := c.log.TraceFromContext(ctx).Function("CancelAsClient")

	if err := requireRole(session, RoleClient); err != nil {
		return Request{}, err
	}
	if err := c.validator.Validate(input); err != nil {
		return Request{}, err
	}

	request, err := c.known(ctx, session, id)
	if err != nil {
		return Request{}, err
	}
	if err := request.CheckCancel(); err != nil {
		return Request{}, err
	}

	if err := c.api.CancelAsClient(ctx, id, input); err != nil {
		return Request{}, log.Err("failed to cancel request", err, "requestID", id)
	}

	return c.applyCancel(session, id, input.Reason)
}

func (c *RequestController) CancelAsProfessional(
	ctx context.Context,
	session *services.Session,
	id ID,
	input ProfessionalCancellation,
) (Request, error) {
	log := c.log.TraceFromContext(ctx).Function("CancelAsProfessional")

	if err := requireRole(session, RoleProfessional); err != nil {
		return Request{}, err
	}
	if err := c.validator.Validate(input); err != nil {
		return Request{}, err
	}

	request, err := c.known(ctx, session, id)
	if err != nil {
		return Request{}, err
	}
	if err := request.CheckCancel(); err != nil {
		return Request{}, err
	}

	if err := c.api.CancelAsProfessional(ctx, id, input.Reason); err != nil {
		return Request{}, log.Err("failed to cancel request", err, "requestID", id)
	}

	return c.applyCancel(session, id, input.Reason)
}

func (c *RequestController) applyCancel(session *services.Session, id ID, reason string) (Request, error) {
	return session.Requests.Apply(id, func(request *Request) error {
		if !request.ApplyCancel(reason) {
			return request.CheckCancel()
		}
		return nil
	})
}

func (c *RequestController) FinishRequest(
	ctx context.Context,
	session *services.Session,
	id ID,
	report FinishReport,
) (Request, error) {
	log := c.log.TraceFromContext(ctx).Function("FinishRequest")

	if err := requireRole(session, RoleProfessional); err != nil {
		return Request{}, err
	}
	if err := c.validator.Validate(report); err != nil {
		return Request{}, err
	}

	request, err := c.known(ctx, session, id)
	if err != nil {
		return Request{}, err
	}
	if err := request.CheckFinish(session.Identity.UserID, c.finishPolicy); err != nil {
		return Request{}, err
	}

	if err := c.api.FinishRequest(ctx, id, report); err != nil {
		return Request{}, log.Err("failed to finish request", err, "requestID", id)
	}

	log.Info("Request finished", "requestID", id)
	return session.Requests.Apply(id, func(request *Request) error {
		if !request.ApplyFinish(report) {
			return request.CheckFinish(session.Identity.UserID, c.finishPolicy)
		}
		return nil
	})
}

// SubmitQuotation records the professional's price and reloads the detail so the
// quotations follow server order. When the reload fails the price is recorded
// locally.
func (c *RequestController) SubmitQuotation(
	ctx context.Context,
	session *services.Session,
	id ID,
	input QuotationInput,
) (Request, error) {
	log := c.log.TraceFromContext(ctx).Function("SubmitQuotation")

	if err := requireRole(session, RoleProfessional); err != nil {
		return Request{}, err
	}
	if err := c.validator.Validate(input); err != nil {
		return Request{}, err
	}

	professionalID := session.Identity.UserID
	request, err := c.known(ctx, session, id)
	if err != nil {
		return Request{}, err
	}
	if err := request.CheckQuote(professionalID); err != nil {
		return Request{}, err
	}

	if err := c.api.SubmitQuotation(ctx, id, input.Price); err != nil {
		return Request{}, log.Err("failed to submit quotation", err, "requestID", id)
	}

	reloaded, err := c.api.GetRequest(ctx, session.Identity.Role, id)
	if err == nil {
		if _, ok := reloaded.OwnQuotation(professionalID); ok {
			return session.Requests.Upsert(reloaded), nil
		}
		session.Requests.Upsert(reloaded)
	} else {
		log.Warn("Reload after quotation failed", "requestID", id, "error", err)
	}

	return session.Requests.Apply(id, func(request *Request) error {
		request.ApplyQuotation(Quotation{ProfessionalID: professionalID, Price: input.Price})
		return nil
	})
}

func (c *RequestController) RateProfessional(
	ctx context.Context,
	session *services.Session,
	id ID,
	rating Rating,
) error {
	log := c.log.TraceFromContext(ctx).Function("RateProfessional")

	if err := requireRole(session, RoleClient); err != nil {
		return err
	}
	if err := c.validator.Validate(rating); err != nil {
		return err
	}

	request, err := c.known(ctx, session, id)
	if err != nil {
		return err
	}
	if err := request.CheckRate(); err != nil {
		return err
	}

	if err := c.api.ValidateRating(ctx, id); err != nil {
		return log.Err("request cannot be rated", err, "requestID", id)
	}
	if err := c.api.RateProfessional(ctx, id, rating); err != nil {
		return log.Err("failed to rate professional", err, "requestID", id)
	}

	log.Info("Professional rated", "requestID", id)
	return nil
}

// ChatOpened clears the request's unread badge until the next poll.
func (c *RequestController) ChatOpened(ctx context.Context, session *services.Session, id ID) {
	session.Unread.MarkChatOpened(id)
	session.Requests.MergeUnread([]ID{id}, UnreadCounts{})
}
