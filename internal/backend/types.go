package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/carlosbmello/echef-caixa-web/internal/money"
)

// SessionStatus enumerates cash session states. Unknown wire values are
// rejected rather than passed through.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"
	SessionClosed SessionStatus = "closed"
)

// UnmarshalJSON maps the backend's wire values onto the enumeration.
func (s *SessionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "aberta":
		*s = SessionOpen
	case "fechada":
		*s = SessionClosed
	default:
		return fmt.Errorf("backend: unknown session status %q", raw)
	}
	return nil
}

// Session mirrors the backend's cash session record. Closed sessions are
// immutable history; the close fields are only present after closing.
type Session struct {
	ID                  int64          `json:"id"`
	OperatorID          int64          `json:"usuario_abertura_id"`
	OperatorName        string         `json:"nome_usuario_abertura,omitempty"`
	OpenedAt            time.Time      `json:"data_abertura"`
	OpeningFloat        money.Amount   `json:"valor_abertura"`
	Status              SessionStatus  `json:"status"`
	ClosingOperatorID   *int64         `json:"usuario_fechamento_id,omitempty"`
	ClosingOperatorName *string        `json:"nome_usuario_fechamento,omitempty"`
	ClosedAt            *time.Time     `json:"data_fechamento,omitempty"`
	ExpectedAmount      *money.Amount  `json:"valor_fechamento_calculado,omitempty"`
	CountedAmount       *money.Amount  `json:"valor_fechamento_informado,omitempty"`
	Discrepancy         *money.Amount  `json:"diferenca_caixa,omitempty"`
	Note                *string        `json:"observacao,omitempty"`
}

// MovementKind enumerates ad-hoc cash movement kinds.
type MovementKind string

const (
	MovementCashIn  MovementKind = "cash_in"
	MovementCashOut MovementKind = "cash_out"
	MovementExpense MovementKind = "expense"
)

// WireValue returns the value the backend expects for the kind.
func (k MovementKind) WireValue() (string, error) {
	switch k {
	case MovementCashIn:
		return "entrada", nil
	case MovementCashOut:
		return "saida", nil
	case MovementExpense:
		return "despesa", nil
	default:
		return "", fmt.Errorf("backend: unknown movement kind %q", string(k))
	}
}

// UnmarshalJSON maps wire movement kinds onto the enumeration.
func (k *MovementKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "entrada":
		*k = MovementCashIn
	case "saida":
		*k = MovementCashOut
	case "despesa":
		*k = MovementExpense
	default:
		return fmt.Errorf("backend: unknown movement kind %q", raw)
	}
	return nil
}

// Movement is an immutable cash movement recorded against an open session.
type Movement struct {
	ID           int64        `json:"id"`
	SessionID    int64        `json:"sessao_caixa_id"`
	OperatorID   int64        `json:"usuario_id"`
	OperatorName string       `json:"nome_usuario,omitempty"`
	Kind         MovementKind `json:"tipo"`
	Description  string       `json:"descricao"`
	Amount       money.Amount `json:"valor"`
	RecordedAt   time.Time    `json:"data_hora"`
}

// TabStatus enumerates customer tab states.
type TabStatus string

const (
	TabOpen      TabStatus = "open"
	TabClosed    TabStatus = "closed"
	TabPaid      TabStatus = "paid"
	TabCancelled TabStatus = "cancelled"
)

// UnmarshalJSON maps wire tab statuses onto the enumeration.
func (s *TabStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "aberta":
		*s = TabOpen
	case "fechada":
		*s = TabClosed
	case "paga":
		*s = TabPaid
	case "cancelada":
		*s = TabCancelled
	default:
		return fmt.Errorf("backend: unknown tab status %q", raw)
	}
	return nil
}

// Tab is a customer tab. ConsumptionTotal is authoritative and supplied by
// the order subsystem; the engine never recomputes it from line items.
type Tab struct {
	ID               int64        `json:"id"`
	Number           string       `json:"numero"`
	Status           TabStatus    `json:"status"`
	CustomerName     *string      `json:"cliente_nome,omitempty"`
	ConsumptionTotal money.Amount `json:"total_atual_calculado"`
}

// ItemStatus enumerates line item states.
type ItemStatus string

const (
	ItemActive    ItemStatus = "active"
	ItemCancelled ItemStatus = "cancelled"
)

// UnmarshalJSON maps wire item statuses onto the enumeration. Items arriving
// without a status are treated as active, matching the order subsystem.
func (s *ItemStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "", "ativo":
		*s = ItemActive
	case "cancelado":
		*s = ItemCancelled
	default:
		return fmt.Errorf("backend: unknown item status %q", raw)
	}
	return nil
}

// LineItem is a read-only order line belonging to a tab.
type LineItem struct {
	ID          int64        `json:"id"`
	OrderID     int64        `json:"pedido_id"`
	ProductName string       `json:"nome_produto"`
	Quantity    money.Amount `json:"quantidade"`
	UnitPrice   money.Amount `json:"preco_unitario_momento"`
	Note        *string      `json:"observacao_item,omitempty"`
	Status      ItemStatus   `json:"status_item"`
	TabNumber   string       `json:"numero_comanda,omitempty"`
}

// TenderKind enumerates payment method kinds.
type TenderKind string

const (
	TenderCash       TenderKind = "cash"
	TenderDebitCard  TenderKind = "debit_card"
	TenderCreditCard TenderKind = "credit_card"
	TenderPix        TenderKind = "pix"
	TenderVoucher    TenderKind = "voucher"
	TenderOther      TenderKind = "other"
)

// UnmarshalJSON maps wire tender kinds onto the enumeration.
func (k *TenderKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "dinheiro":
		*k = TenderCash
	case "cartao_debito":
		*k = TenderDebitCard
	case "cartao_credito":
		*k = TenderCreditCard
	case "pix":
		*k = TenderPix
	case "voucher":
		*k = TenderVoucher
	case "outro":
		*k = TenderOther
	default:
		return fmt.Errorf("backend: unknown tender kind %q", raw)
	}
	return nil
}

// TenderMethod is a payment method configured on the backend.
type TenderMethod struct {
	ID     int64      `json:"id"`
	Name   string     `json:"nome"`
	Kind   TenderKind `json:"tipo"`
	Active bool       `json:"ativo"`
}

// PaymentRecord is a committed payment as listed for a session.
type PaymentRecord struct {
	ID               int64        `json:"id"`
	TabID            *int64       `json:"comanda_id,omitempty"`
	SessionID        int64        `json:"sessao_caixa_id"`
	TenderMethodID   int64        `json:"forma_pagamento_id"`
	TenderMethodName string       `json:"nome_forma_pagamento,omitempty"`
	Amount           money.Amount `json:"valor"`
	RecordedAt       time.Time    `json:"data_hora"`
	GroupID          *string      `json:"grupo_uuid,omitempty"`
}

// FinalizePayment is one tender entry submitted at finalize time.
type FinalizePayment struct {
	TenderMethodID   int64        `json:"forma_pagamento_id"`
	TenderMethodName string       `json:"nome_forma_pagamento,omitempty"`
	Amount           money.Amount `json:"valor"`
}

// FinalizeInput carries the whole checkout to the transaction finalizer. It
// must be submitted at most once per settled checkout group.
type FinalizeInput struct {
	TabIDs        []int64           `json:"comandaIds"`
	ServiceCharge money.Amount      `json:"taxa_servico"`
	Surcharge     money.Amount      `json:"acrescimos"`
	Discount      money.Amount      `json:"descontos"`
	Payments      []FinalizePayment `json:"pagamentos"`
}

// ConferenceSlip is the payload for the pre-settlement conference print.
type ConferenceSlip struct {
	PointID          string        `json:"pointId"`
	TabIDs           []int64       `json:"comandaIds"`
	Items            []LineItem    `json:"items"`
	ConsumptionTotal money.Amount  `json:"totalConsumo"`
	ServiceCharge    money.Amount  `json:"taxaServico"`
	ServiceEnabled   bool          `json:"incluiuTaxa"`
	Surcharge        money.Amount  `json:"acrescimos"`
	Discount         money.Amount  `json:"descontos"`
	TotalDue         money.Amount  `json:"totalAPagar"`
	TotalPaid        money.Amount  `json:"totalPago"`
	BalanceDue       money.Amount  `json:"saldoDevedor"`
	SplitCount       int           `json:"numeroPessoas,omitempty"`
}

// PrintJob is a queued print job as reported by the backend.
type PrintJob struct {
	ID        int64     `json:"id"`
	PointID   string    `json:"pointId"`
	JobType   string    `json:"jobType"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
