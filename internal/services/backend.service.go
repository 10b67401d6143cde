package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ineed/config"
	"ineed/internal/apperrors"
	. "ineed/internal/models"
	"ineed/internal/repositories"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/shopspring/decimal"
)

const (
	ACCESS_TOKEN_HEADER  = "x-access-token"
	REFRESH_TOKEN_HEADER = "x-refresh-token"
)

// BackendService calls the marketplace REST API on behalf of a role. Every call
// carries that role's credentials and stores the rotated ones from the response.
type BackendService struct {
	client      *http.Client
	baseURL     string
	credentials repositories.CredentialRepository
	log         logger.Logger
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func NewBackendService(config config.Config, credentials repositories.CredentialRepository) *BackendService {
	timeout := config.HTTPTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &BackendService{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(config.APIBaseURL, "/"),
		credentials: credentials,
		log:         logger.New("BackendService"),
	}
}

// do sends one API call. Failures come back as AppErrors: transport problems and
// 5xx as network, 401/403 as auth, other 4xx and success:false as request errors.
// When result is set it receives the envelope's data, or the whole body when the
// endpoint answers without a data field.
func (b *BackendService) do(
	ctx context.Context,
	role Role,
	method, path string,
	body any,
	result any,
	fallback string,
) error {
	log := b.log.TraceFromContext(ctx).Function("do")

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Internal(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return apperrors.Internal(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	b.attachCredentials(ctx, req, role)

	resp, err := b.client.Do(req)
	if err != nil {
		log.Warn("API call failed", "method", method, "path", path, "error", err)
		return apperrors.Network(err, fallback)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	b.rotateCredentials(ctx, resp, role)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Network(err, fallback)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)
	message := fallback
	if decodeErr == nil && env.Message != "" {
		message = env.Message
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		log.Warn("API call unauthorized", "path", path, "status", resp.StatusCode, "role", role)
		return apperrors.Unauthorized(resp.StatusCode, message)
	case resp.StatusCode >= 500:
		return apperrors.Upstream(resp.StatusCode, message)
	case resp.StatusCode >= 400:
		return apperrors.Rejected(resp.StatusCode, message)
	}

	if decodeErr != nil {
		if result == nil && len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		// bare arrays and scalars carry no envelope
		if result != nil && json.Unmarshal(raw, result) == nil {
			return nil
		}
		return apperrors.Wrap(decodeErr, apperrors.KindNetwork, apperrors.CodeMalformedResponse, fallback)
	}

	if env.Success != nil && !*env.Success {
		return apperrors.Rejected(resp.StatusCode, message)
	}

	if result == nil {
		return nil
	}

	data := raw
	if len(env.Data) > 0 {
		if bytes.Equal(env.Data, []byte("null")) {
			return nil
		}
		data = env.Data
	}
	if err := json.Unmarshal(data, result); err != nil {
		return apperrors.Wrap(err, apperrors.KindNetwork, apperrors.CodeMalformedResponse, fallback)
	}

	return nil
}

func (b *BackendService) attachCredentials(ctx context.Context, req *http.Request, role Role) {
	if role == "" || b.credentials == nil {
		return
	}

	credentials, ok, err := b.credentials.Get(ctx, role)
	if err != nil || !ok {
		return
	}

	if credentials.AccessToken != "" {
		req.Header.Set(ACCESS_TOKEN_HEADER, credentials.AccessToken)
	}
	if credentials.RefreshToken != "" {
		req.Header.Set(REFRESH_TOKEN_HEADER, credentials.RefreshToken)
	}
}

func (b *BackendService) rotateCredentials(ctx context.Context, resp *http.Response, role Role) {
	if role == "" || b.credentials == nil {
		return
	}

	rotated := Credentials{
		AccessToken:  resp.Header.Get(ACCESS_TOKEN_HEADER),
		RefreshToken: resp.Header.Get(REFRESH_TOKEN_HEADER),
	}
	if rotated.IsZero() {
		return
	}

	if err := b.credentials.Save(ctx, role, rotated); err != nil {
		b.log.Function("rotateCredentials").Er("failed to store rotated credentials", err, "role", role)
	}
}

func (b *BackendService) Credentials() repositories.CredentialRepository {
	return b.credentials
}

// Requests

func (b *BackendService) ListRequests(ctx context.Context, role Role, scope RequestScope) ([]Request, error) {
	path := "/api/my_requests?type=" + url.QueryEscape(string(scope))
	if role == RoleProfessional {
		path = "/api/professionals/get-prof-requests?mode=" + url.QueryEscape(string(scope))
	}

	var requests []Request
	if err := b.do(ctx, role, http.MethodGet, path, nil, &requests, "Failed to fetch requests"); err != nil {
		return nil, err
	}
	return requests, nil
}

type clientRequestDetail struct {
	Request    Request     `json:"request"`
	Quotations []Quotation `json:"quotations"`
}

func (b *BackendService) GetRequest(ctx context.Context, role Role, id ID) (Request, error) {
	const fallback = "Failed to fetch request details"

	if role == RoleProfessional {
		var request Request
		path := "/api/professionals/request/" + url.PathEscape(id.String())
		if err := b.do(ctx, role, http.MethodGet, path, nil, &request, fallback); err != nil {
			return Request{}, err
		}
		if request.ID.IsZero() {
			request.ID = id
		}
		return request, nil
	}

	var detail clientRequestDetail
	path := "/api/request/" + url.PathEscape(id.String())
	if err := b.do(ctx, role, http.MethodGet, path, nil, &detail, fallback); err != nil {
		return Request{}, err
	}

	request := detail.Request
	if request.ID.IsZero() {
		request.ID = id
	}
	if len(detail.Quotations) > 0 {
		request.Quotations = detail.Quotations
	}
	return request, nil
}

func (b *BackendService) SelectProfessional(ctx context.Context, requestID, professionalID ID) error {
	body := map[string]any{"requestId": requestID, "professionalId": professionalID}
	return b.do(ctx, RoleClient, http.MethodPut, "/api/request/select-professional", body, nil,
		"Failed to select professional")
}

func (b *BackendService) CancelAsClient(ctx context.Context, requestID ID, input ClientCancellation) error {
	path := "/api/cancel-request/" + url.PathEscape(requestID.String())
	body := map[string]any{"reason": input.Reason, "details": input.Details}
	return b.do(ctx, RoleClient, http.MethodPost, path, body, nil, "Failed to cancel request")
}

func (b *BackendService) CancelAsProfessional(ctx context.Context, requestID ID, reason string) error {
	body := map[string]any{"requestId": requestID, "reason": reason}
	return b.do(ctx, RoleProfessional, http.MethodPost, "/api/professionals/cancel-request", body, nil,
		"Failed to cancel request")
}

func (b *BackendService) FinishRequest(ctx context.Context, requestID ID, report FinishReport) error {
	imageURLs := report.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	body := map[string]any{
		"requestId":      requestID,
		"completionDate": report.CompletionDate.UTC().Format(time.RFC3339Nano),
		"workCost":       report.WorkCost.InexactFloat64(),
		"comment":        report.Comment,
		"imageUrls":      imageURLs,
	}
	return b.do(ctx, RoleProfessional, http.MethodPost, "/api/professionals/finish-request", body, nil,
		"Failed to finish request")
}

func (b *BackendService) SubmitQuotation(ctx context.Context, requestID ID, price decimal.Decimal) error {
	body := map[string]any{"requestId": requestID, "quotation": price.IntPart()}
	return b.do(ctx, RoleProfessional, http.MethodPost, "/api/professionals/quotation", body, nil,
		"Failed to submit quotation")
}

func (b *BackendService) ValidateRating(ctx context.Context, requestID ID) error {
	path := "/api/validate-rating/" + url.PathEscape(requestID.String())
	return b.do(ctx, RoleClient, http.MethodGet, path, nil, nil, "Request cannot be rated")
}

func (b *BackendService) RateProfessional(ctx context.Context, requestID ID, rating Rating) error {
	body := map[string]any{
		"requestId":             requestID,
		"qualityRating":         rating.QualityRating,
		"professionalismRating": rating.ProfessionalismRating,
		"priceRating":           rating.PriceRating,
	}
	return b.do(ctx, RoleClient, http.MethodPost, "/api/rate-professional", body, nil,
		"Failed to submit rating")
}

// Notifications

func (b *BackendService) FetchNotifications(ctx context.Context, identity Identity) ([]Notification, error) {
	path := fmt.Sprintf("/notifications/%s/%s",
		url.PathEscape(string(identity.Role)), url.PathEscape(identity.UserID.String()))

	var notifications []Notification
	if err := b.do(ctx, identity.Role, http.MethodGet, path, nil, &notifications,
		"Failed to fetch notifications"); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (b *BackendService) MarkNotificationRead(ctx context.Context, identity Identity, id ID) error {
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id.String()))
	return b.do(ctx, identity.Role, http.MethodPut, path, nil, nil, "Failed to mark notification as read")
}

func (b *BackendService) DeleteNotifications(ctx context.Context, identity Identity, ids []ID) error {
	body := map[string]any{"notificationIds": ids}
	return b.do(ctx, identity.Role, http.MethodPost, "/notifications/delete", body, nil,
		"Failed to delete notifications")
}

// Identity and chat tokens

type verifyResponse struct {
	DecryptedUserdata *VerifiedUser `json:"decryptedUserdata"`
}

func (b *BackendService) VerifyIdentity(ctx context.Context, role Role) (Identity, error) {
	path := "/auth/verify-client"
	if role == RoleProfessional {
		path = "/auth/verify-auth"
	}

	var response verifyResponse
	if err := b.do(ctx, role, http.MethodGet, path, nil, &response, "Session verification failed"); err != nil {
		return Identity{}, err
	}
	if response.DecryptedUserdata == nil {
		return Identity{}, apperrors.Unauthorized(http.StatusUnauthorized, "Session verification returned no user")
	}

	identity := response.DecryptedUserdata.Identity(role)
	if identity.IsZero() {
		return Identity{}, apperrors.Unauthorized(http.StatusUnauthorized, "Session verification returned no user id")
	}
	return identity, nil
}

type chatTokenResponse struct {
	Token string `json:"token"`
}

func (b *BackendService) GenerateChatToken(ctx context.Context, identity Identity) (string, error) {
	body := map[string]any{"id": identity.UserID.String(), "type": identity.Role.ChatType()}

	var response chatTokenResponse
	if err := b.do(ctx, identity.Role, http.MethodPost, "/api/generate-user-token", body, &response,
		"Failed to generate chat token"); err != nil {
		return "", err
	}
	if response.Token == "" {
		return "", apperrors.New(apperrors.KindNetwork, apperrors.CodeMalformedResponse, "Chat token missing from response")
	}
	return response.Token, nil
}
