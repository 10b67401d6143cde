package models

import (
	"fmt"
	"strings"
	"time"

	"ineed/internal/apperrors"

	"github.com/shopspring/decimal"
)

type RequestStatus string

const (
	StatusOpen      RequestStatus = "open"
	StatusInProcess RequestStatus = "in-process"
	StatusClosed    RequestStatus = "closed"
	StatusCancelled RequestStatus = "cancelled"
)

func ParseRequestStatus(value string) RequestStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "open", "new":
		return StatusOpen
	case "in-process", "in_process", "inprocess", "in process":
		return StatusInProcess
	case "closed", "finished", "done":
		return StatusClosed
	case "cancelled", "canceled":
		return StatusCancelled
	default:
		return RequestStatus(value)
	}
}

func (s *RequestStatus) UnmarshalText(text []byte) error {
	*s = ParseRequestStatus(string(text))
	return nil
}

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProcess, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

func (s RequestStatus) IsActive() bool {
	return s == StatusOpen || s == StatusInProcess
}

func (s RequestStatus) rank() int {
	switch s {
	case StatusOpen:
		return 0
	case StatusInProcess:
		return 1
	default:
		return 2
	}
}

// CanTransitionTo reports whether next is reachable from s: forward along
// open -> in-process -> closed, or to cancelled from a non-terminal status.
// Staying in place is always allowed.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	if s == next {
		return true
	}
	if !next.Valid() {
		return false
	}
	if !s.Valid() {
		return true
	}
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return next.rank() > s.rank()
}

// FinishPolicy decides which statuses allow the assigned professional to finish.
type FinishPolicy int

const (
	// FinishLoose accepts open or in-process requests.
	FinishLoose FinishPolicy = iota
	// FinishStrict accepts in-process requests only.
	FinishStrict
)

type ClientContact struct {
	FullName    string `json:"fullName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type Quotation struct {
	ID             ID              `json:"id,omitempty"`
	ProfessionalID ID              `json:"professionalId"`
	Price          decimal.Decimal `json:"price"`
	Name           string          `json:"name,omitempty"`
	Image          string          `json:"image,omitempty"`
}

type Request struct {
	ID             ID               `json:"id"`
	Status         RequestStatus    `json:"status"`
	ClientID       ID               `json:"clientId"`
	Client         *ClientContact   `json:"client,omitempty"`
	ProfessionalID ID               `json:"professionalId"`
	JobRequiredID  ID               `json:"jobRequiredId"`
	City           string           `json:"city,omitempty"`
	Date           string           `json:"date,omitempty"`
	Comment        string           `json:"comment,omitempty"`
	ImageURLs      []string         `json:"imageUrls,omitempty"`
	Quotations     []Quotation      `json:"quotations,omitempty"`
	Quotation      *decimal.Decimal `json:"quotation,omitempty"`
	MyQuotation    *decimal.Decimal `json:"myQuotation,omitempty"`
	NumOfProfs     int              `json:"numOfProfs,omitempty"`
	CompletionDate *time.Time       `json:"completionDate,omitempty"`
	WorkCost       *decimal.Decimal `json:"workCost,omitempty"`
	FinishComment  string           `json:"finishComment,omitempty"`
	CancelReason   string           `json:"cancelReason,omitempty"`
	UnreadMessages int              `json:"unreadMessages"`
}

func (r *Request) HasProfessional() bool {
	return !r.ProfessionalID.IsZero()
}

// QuotationFrom returns the professional's quotation, in arrival order position.
func (r *Request) QuotationFrom(professionalID ID) (Quotation, bool) {
	for _, q := range r.Quotations {
		if q.ProfessionalID == professionalID {
			return q, true
		}
	}
	return Quotation{}, false
}

// OwnQuotation is the acting professional's price as reported by the professional views.
func (r *Request) OwnQuotation(professionalID ID) (decimal.Decimal, bool) {
	if r.Quotation != nil {
		return *r.Quotation, true
	}
	if r.MyQuotation != nil {
		return *r.MyQuotation, true
	}
	if q, ok := r.QuotationFrom(professionalID); ok {
		return q.Price, true
	}
	return decimal.Zero, false
}

func (r *Request) CheckSelectProfessional(professionalID ID) error {
	if r.Status != StatusOpen {
		return invalidStatus(r, "select a professional for")
	}
	if _, ok := r.QuotationFrom(professionalID); !ok {
		return apperrors.Transition(
			apperrors.CodeUnknownQuotation,
			fmt.Sprintf("Professional %s has no quotation on request %s", professionalID, r.ID),
		)
	}
	return nil
}

func (r *Request) CheckCancel() error {
	if !r.Status.IsActive() {
		return invalidStatus(r, "cancel")
	}
	return nil
}

func (r *Request) CheckFinish(professionalID ID, policy FinishPolicy) error {
	if r.Status.IsTerminal() {
		return invalidStatus(r, "finish")
	}
	if !r.HasProfessional() || r.ProfessionalID != professionalID {
		return apperrors.Transition(
			apperrors.CodeNotAssigned,
			fmt.Sprintf("Request %s is not assigned to professional %s", r.ID, professionalID),
		)
	}
	if policy == FinishStrict && r.Status != StatusInProcess {
		return invalidStatus(r, "finish")
	}
	if !r.Status.IsActive() {
		return invalidStatus(r, "finish")
	}
	return nil
}

func (r *Request) CheckQuote(professionalID ID) error {
	if r.Status != StatusOpen {
		return invalidStatus(r, "quote on")
	}
	if _, ok := r.OwnQuotation(professionalID); ok {
		return apperrors.Transition(
			apperrors.CodeAlreadyQuoted,
			fmt.Sprintf("A quotation for request %s is already recorded", r.ID),
		)
	}
	return nil
}

func (r *Request) CheckRate() error {
	if r.Status != StatusClosed {
		return invalidStatus(r, "rate")
	}
	return nil
}

// Advance moves the request to next when the transition is allowed.
func (r *Request) Advance(next RequestStatus) bool {
	if !r.Status.CanTransitionTo(next) {
		return false
	}
	r.Status = next
	return true
}

func (r *Request) ApplySelection(professionalID ID) {
	r.ProfessionalID = professionalID
}

func (r *Request) ApplyCancel(reason string) bool {
	if !r.Advance(StatusCancelled) {
		return false
	}
	r.CancelReason = reason
	return true
}

func (r *Request) ApplyFinish(report FinishReport) bool {
	if !r.Advance(StatusClosed) {
		return false
	}
	completion := report.CompletionDate
	cost := report.WorkCost
	r.CompletionDate = &completion
	r.WorkCost = &cost
	r.FinishComment = report.Comment
	r.ImageURLs = append([]string(nil), report.ImageURLs...)
	return true
}

func (r *Request) ApplyQuotation(q Quotation) {
	price := q.Price
	r.Quotation = &price
	if _, ok := r.QuotationFrom(q.ProfessionalID); !ok {
		r.Quotations = append(r.Quotations, q)
	}
}

func (r *Request) Clone() Request {
	c := *r
	if r.Client != nil {
		client := *r.Client
		c.Client = &client
	}
	c.ImageURLs = append([]string(nil), r.ImageURLs...)
	c.Quotations = append([]Quotation(nil), r.Quotations...)
	return c
}

func invalidStatus(r *Request, action string) error {
	return apperrors.Transition(
		apperrors.CodeInvalidStatus,
		fmt.Sprintf("Cannot %s request %s while it is %s", action, r.ID, r.Status),
	)
}

// FinishReport is what a professional attaches when closing a request.
type FinishReport struct {
	CompletionDate time.Time       `json:"completionDate" validate:"required"`
	WorkCost       decimal.Decimal `json:"workCost"       validate:"gte=0"`
	Comment        string          `json:"comment"`
	ImageURLs      []string        `json:"imageUrls"      validate:"omitempty,dive,required"`
}

type ClientCancellation struct {
	Reason  string `json:"reason"  validate:"notblank"`
	Details string `json:"details"`
}

type ProfessionalCancellation struct {
	Reason string `json:"reason" validate:"notblank"`
}

type QuotationInput struct {
	Price decimal.Decimal `json:"price" validate:"gt=0,wholenumber"`
}

type SelectionInput struct {
	ProfessionalID ID `json:"professionalId" validate:"required"`
}

type Rating struct {
	QualityRating         int `json:"qualityRating"         validate:"min=1,max=5"`
	ProfessionalismRating int `json:"professionalismRating" validate:"min=1,max=5"`
	PriceRating           int `json:"priceRating"           validate:"min=1,max=5"`
}

// DefaultRating mirrors the rating form's initial values.
func DefaultRating() Rating {
	return Rating{QualityRating: 1, ProfessionalismRating: 1, PriceRating: 1}
}
