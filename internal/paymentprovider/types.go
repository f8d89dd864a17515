package paymentprovider

import (
	"encoding/json"
	"time"
)

// Статусы подписки в PayPal.
const (
	StatusApprovalPending = "APPROVAL_PENDING"
	StatusApproved        = "APPROVED"
	StatusActive          = "ACTIVE"
	StatusSuspended       = "SUSPENDED"
	StatusCancelled       = "CANCELLED"
	StatusExpired         = "EXPIRED"
)

// Базовые адреса REST API.
const (
	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"
)

// Запрос на создание подписки по тарифному плану
type CreateSubscriptionRequest struct {
	PlanID             string             `json:"plan_id"`
	CustomID           string             `json:"custom_id,omitempty"`
	StartTime          *time.Time         `json:"start_time,omitempty"`
	Subscriber         *Subscriber        `json:"subscriber,omitempty"`
	ApplicationContext ApplicationContext `json:"application_context"`
}

// Subscriber — плательщик подписки.
type Subscriber struct {
	EmailAddress string `json:"email_address,omitempty"`
}

// ApplicationContext настраивает страницу согласия PayPal.
type ApplicationContext struct {
	BrandName          string `json:"brand_name,omitempty"`
	Locale             string `json:"locale,omitempty"`
	ShippingPreference string `json:"shipping_preference,omitempty"`
	UserAction         string `json:"user_action,omitempty"`
	ReturnURL          string `json:"return_url,omitempty"`
	CancelURL          string `json:"cancel_url,omitempty"`
}

// Link — HATEOAS-ссылка из ответа PayPal.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// BillingInfo — сведения о биллинге подписки.
type BillingInfo struct {
	NextBillingTime *time.Time `json:"next_billing_time,omitempty"`
}

// Subscription — подписка в представлении PayPal.
type Subscription struct {
	ID          string       `json:"id"`
	Status      string       `json:"status"`
	PlanID      string       `json:"plan_id,omitempty"`
	CustomID    string       `json:"custom_id,omitempty"`
	StartTime   *time.Time   `json:"start_time,omitempty"`
	CreateTime  *time.Time   `json:"create_time,omitempty"`
	BillingInfo *BillingInfo `json:"billing_info,omitempty"`
	Links       []Link       `json:"links,omitempty"`
}

// ApproveLink возвращает ссылку, по которой плательщик подтверждает подписку.
func (s *Subscription) ApproveLink() string {
	for _, l := range s.Links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

// NextBillingTime возвращает дату следующего списания, если она известна.
func (s *Subscription) NextBillingTime() *time.Time {
	if s.BillingInfo == nil {
		return nil
	}
	return s.BillingInfo.NextBillingTime
}

// WebhookEvent — тело уведомления PayPal.
type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	CreateTime   time.Time       `json:"create_time"`
	ResourceType string          `json:"resource_type,omitempty"`
	Resource     WebhookResource `json:"resource"`
}

// WebhookResource — объект, к которому относится событие.
// Для событий платежа идентификатор подписки приходит в billing_agreement_id.
type WebhookResource struct {
	ID                 string `json:"id"`
	Status             string `json:"status,omitempty"`
	BillingAgreementID string `json:"billing_agreement_id,omitempty"`
}

// SubscriptionID возвращает идентификатор подписки, к которой относится событие.
func (e *WebhookEvent) SubscriptionID() string {
	if e.Resource.BillingAgreementID != "" {
		return e.Resource.BillingAgreementID
	}
	return e.Resource.ID
}

// WebhookHeaders — заголовки подписи уведомления.
type WebhookHeaders struct {
	AuthAlgo         string
	CertURL          string
	TransmissionID   string
	TransmissionSig  string
	TransmissionTime string
}

type verifyWebhookRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookResponse struct {
	VerificationStatus string `json:"verification_status"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}
