package repositories

import (
	"fmt"
	"net/http"
	"sync"

	"ineed/internal/apperrors"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

// RequestRepository is one session's view of its requests. Server listings are
// folded in with Reconcile; confirmed local actions with Apply.
type RequestRepository interface {
	Reconcile(scope RequestScope, incoming []Request) []Request
	Upsert(incoming Request) Request
	Get(id ID) (Request, bool)
	List(scope RequestScope) []Request
	IDs(scope RequestScope) []ID
	Apply(id ID, mutate func(request *Request) error) (Request, error)
	MergeUnread(ids []ID, counts UnreadCounts)
}

type requestRepository struct {
	mu       sync.RWMutex
	requests map[ID]*Request
	scopes   map[RequestScope][]ID
	log      logger.Logger
}

func NewRequestRepository() RequestRepository {
	return &requestRepository{
		requests: make(map[ID]*Request),
		scopes:   make(map[RequestScope][]ID),
		log:      logger.New("requestRepository"),
	}
}

// Reconcile replaces the scope's listing with server order and merges each request
// into the known state.
func (r *requestRepository) Reconcile(scope RequestScope, incoming []Request) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]ID, 0, len(incoming))
	result := make([]Request, 0, len(incoming))
	for _, request := range incoming {
		if request.ID.IsZero() {
			continue
		}
		merged := r.merge(request)
		ids = append(ids, merged.ID)
		result = append(result, merged.Clone())
	}
	r.scopes[scope] = ids

	return result
}

func (r *requestRepository) Upsert(incoming Request) Request {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.merge(incoming).Clone()
}

// merge keeps the local status when the incoming one would move backwards. Fields
// a listing omits (assignee, quotations, images, unread count) keep their local value.
func (r *requestRepository) merge(incoming Request) *Request {
	current, ok := r.requests[incoming.ID]
	if !ok {
		request := incoming.Clone()
		r.requests[incoming.ID] = &request
		return &request
	}

	merged := incoming.Clone()
	if !current.Status.CanTransitionTo(incoming.Status) {
		if incoming.Status != "" {
			r.log.Function("merge").Warn(
				"Ignoring status regression",
				"requestID", incoming.ID,
				"local", current.Status,
				"incoming", incoming.Status,
			)
		}
		merged.Status = current.Status
	}
	if merged.ProfessionalID.IsZero() {
		merged.ProfessionalID = current.ProfessionalID
	}
	if merged.Client == nil {
		merged.Client = current.Client
	}
	if len(merged.Quotations) == 0 {
		merged.Quotations = append([]Quotation(nil), current.Quotations...)
	}
	if len(merged.ImageURLs) == 0 {
		merged.ImageURLs = append([]string(nil), current.ImageURLs...)
	}
	if merged.Quotation == nil {
		merged.Quotation = current.Quotation
	}
	if merged.MyQuotation == nil {
		merged.MyQuotation = current.MyQuotation
	}
	if merged.CompletionDate == nil {
		merged.CompletionDate = current.CompletionDate
	}
	if merged.WorkCost == nil {
		merged.WorkCost = current.WorkCost
	}
	if merged.CancelReason == "" {
		merged.CancelReason = current.CancelReason
	}
	if merged.UnreadMessages == 0 {
		merged.UnreadMessages = current.UnreadMessages
	}

	*current = merged
	return current
}

func (r *requestRepository) Get(id ID) (Request, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, ok := r.requests[id]
	if !ok {
		return Request{}, false
	}
	return request.Clone(), true
}

func (r *requestRepository) List(scope RequestScope) []Request {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.scopes[scope]
	result := make([]Request, 0, len(ids))
	for _, id := range ids {
		if request, ok := r.requests[id]; ok {
			result = append(result, request.Clone())
		}
	}
	return result
}

func (r *requestRepository) IDs(scope RequestScope) []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]ID(nil), r.scopes[scope]...)
}

// Apply runs mutate on a copy and stores it only when mutate succeeds and the
// resulting status is reachable from the stored one.
func (r *requestRepository) Apply(id ID, mutate func(request *Request) error) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.requests[id]
	if !ok {
		return Request{}, apperrors.Rejected(http.StatusNotFound, fmt.Sprintf("Request %s is not known", id))
	}

	updated := current.Clone()
	if err := mutate(&updated); err != nil {
		return current.Clone(), err
	}
	if !current.Status.CanTransitionTo(updated.Status) {
		return current.Clone(), apperrors.Transition(
			apperrors.CodeInvalidStatus,
			fmt.Sprintf("Request %s cannot move from %s to %s", id, current.Status, updated.Status),
		)
	}

	*current = updated
	return updated.Clone(), nil
}

// MergeUnread sets the unread count of every queried id; ids absent from counts
// have no unread messages.
func (r *requestRepository) MergeUnread(ids []ID, counts UnreadCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if request, ok := r.requests[id]; ok {
			request.UnreadMessages = counts[id]
		}
	}
}
