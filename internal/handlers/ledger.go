package handlers

import (
	"encoding/json"
	"strings"

	"balanceledger/internal/services/statement"
	"balanceledger/internal/services/transfer"
	"balanceledger/internal/utils/pagination"
	"balanceledger/internal/utils/response"
	"balanceledger/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// amount accepts a JSON string or number and keeps its literal text, so
// values never pass through float64.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*a = amount(str)
		return nil
	}
	*a = amount(s)
	return nil
}

// LedgerHandler exposes account, movement and statement endpoints.
type LedgerHandler struct {
	transfers  transfer.Service
	statements statement.Service
}

func NewLedgerHandler(transfers transfer.Service, statements statement.Service) *LedgerHandler {
	return &LedgerHandler{transfers: transfers, statements: statements}
}

func idempotencyKey(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(HeaderIdempotencyKey))
}

func invalid(c *fiber.Ctx, v *validation.Validator) error {
	return response.ValidationFailed(c, v.Error(), v.Errors)
}

func created(c *fiber.Ctx, replayed bool, data interface{}) error {
	if replayed {
		c.Set(HeaderReplayed, "true")
	}
	return response.Created(c, data)
}

// OpenAccount handles POST /accounts requests.
func (h *LedgerHandler) OpenAccount(c *fiber.Ctx) error {
	var req transfer.OpenAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	v := validation.New()
	if v.OpenAccount(req.OwnerRef, req.Unit); !v.Valid() {
		return invalid(c, v)
	}

	account, err := h.transfers.OpenAccount(c.UserContext(), req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, account)
}

type movementInput struct {
	Amount    amount `json:"amount"`
	Reference string `json:"reference"`
}

// Deposit handles POST /accounts/:id/deposit requests.
func (h *LedgerHandler) Deposit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}
	var in movementInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	v := validation.New()
	if v.Reference(in.Reference); !v.Valid() {
		return invalid(c, v)
	}

	entry, replayed, err := h.transfers.Deposit(c.UserContext(), transfer.MovementRequest{
		IdempotencyKey: idempotencyKey(c),
		AccountID:      id,
		Amount:         string(in.Amount),
		Reference:      in.Reference,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return created(c, replayed, entry)
}

// Withdraw handles POST /accounts/:id/withdraw requests.
func (h *LedgerHandler) Withdraw(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}
	var in movementInput
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	v := validation.New()
	if v.Reference(in.Reference); !v.Valid() {
		return invalid(c, v)
	}

	entry, replayed, err := h.transfers.Withdraw(c.UserContext(), transfer.MovementRequest{
		IdempotencyKey: idempotencyKey(c),
		AccountID:      id,
		Amount:         string(in.Amount),
		Reference:      in.Reference,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return created(c, replayed, entry)
}

// Adjust handles POST /accounts/:id/adjust requests.
func (h *LedgerHandler) Adjust(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}
	var in struct {
		Delta     amount `json:"delta"`
		Reference string `json:"reference"`
	}
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	v := validation.New()
	if v.Reference(in.Reference); !v.Valid() {
		return invalid(c, v)
	}

	entry, replayed, err := h.transfers.Adjust(c.UserContext(), transfer.AdjustRequest{
		IdempotencyKey: idempotencyKey(c),
		AccountID:      id,
		Delta:          string(in.Delta),
		Reference:      in.Reference,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return created(c, replayed, entry)
}

// Transfer handles POST /transfers requests.
func (h *LedgerHandler) Transfer(c *fiber.Ctx) error {
	var in struct {
		SourceAccountID      uuid.UUID `json:"sourceAccountId"`
		DestinationAccountID uuid.UUID `json:"destinationAccountId"`
		Amount               amount    `json:"amount"`
		Reference            string    `json:"reference"`
	}
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	v := validation.New()
	v.AccountIDs(in.SourceAccountID, in.DestinationAccountID)
	if v.Reference(in.Reference); !v.Valid() {
		return invalid(c, v)
	}

	res, replayed, err := h.transfers.Transfer(c.UserContext(), transfer.TransferRequest{
		IdempotencyKey:       idempotencyKey(c),
		SourceAccountID:      in.SourceAccountID,
		DestinationAccountID: in.DestinationAccountID,
		Amount:               string(in.Amount),
		Reference:            in.Reference,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return created(c, replayed, res)
}

// TransferStock handles POST /stock/transfers requests.
func (h *LedgerHandler) TransferStock(c *fiber.Ctx) error {
	var in struct {
		ProductID       uint   `json:"productId"`
		FromWarehouseID uint   `json:"fromWarehouseId"`
		ToWarehouseID   uint   `json:"toWarehouseId"`
		Quantity        amount `json:"quantity"`
		Reference       string `json:"reference"`
	}
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request")
	}
	v := validation.New()
	v.StockTransfer(in.ProductID, in.FromWarehouseID, in.ToWarehouseID)
	if v.Reference(in.Reference); !v.Valid() {
		return invalid(c, v)
	}

	res, replayed, err := h.transfers.TransferStock(c.UserContext(), transfer.StockTransferRequest{
		IdempotencyKey:  idempotencyKey(c),
		ProductID:       in.ProductID,
		FromWarehouseID: in.FromWarehouseID,
		ToWarehouseID:   in.ToWarehouseID,
		Quantity:        string(in.Quantity),
		Reference:       in.Reference,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return created(c, replayed, res)
}

// GetAccount handles GET /accounts/:id requests.
func (h *LedgerHandler) GetAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}

	account, err := h.statements.GetAccount(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, account)
}

// GetAccountByOwner handles GET /accounts/by-owner?ownerRef=&unit= requests.
func (h *LedgerHandler) GetAccountByOwner(c *fiber.Ctx) error {
	ownerRef, unit := c.Query("ownerRef"), c.Query("unit")
	v := validation.New()
	if v.Owner(ownerRef, unit); !v.Valid() {
		return invalid(c, v)
	}

	account, err := h.statements.GetAccountByOwner(c.UserContext(), ownerRef, unit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, account)
}

// ListAccounts handles GET /accounts requests.
func (h *LedgerHandler) ListAccounts(c *fiber.Ctx) error {
	list, err := h.statements.ListAccounts(c.UserContext(), pagination.ParseFromRequest(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, pagination.Response(list.Accounts, list.Page, list.Size, list.Total))
}

// Stats handles GET /stats requests.
func (h *LedgerHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.statements.Stats(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, stats)
}

// GetBalance handles GET /accounts/:id/balance requests.
func (h *LedgerHandler) GetBalance(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}

	balance, err := h.statements.GetBalance(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, balance)
}

// GetStatement handles GET /accounts/:id/entries requests.
func (h *LedgerHandler) GetStatement(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}

	st, err := h.statements.GetStatement(c.UserContext(), id, pagination.ParseFromRequest(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, pagination.Response(st.Entries, st.Page, st.Size, st.Total))
}

// Reconcile handles GET /accounts/:id/reconcile requests.
func (h *LedgerHandler) Reconcile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid account id")
	}

	report, err := h.statements.Reconcile(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, report)
}

// GetEntry handles GET /entries/:id requests.
func (h *LedgerHandler) GetEntry(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "invalid entry id")
	}

	entry, err := h.statements.GetEntry(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, entry)
}
