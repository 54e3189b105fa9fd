/*
Package ledger implements the transfer engine: the single writer of account
balances and ledger entries.

Every operation runs in one store transaction. Accounts are locked with
GetAccountForUpdate in lockorder.Order, balances are checked and written,
and one entry per touched account is appended before commit.

Usage:

	svc := ledger.NewService(repo, ledger.Config{}, metrics, log)

	acct, err := svc.OpenAccount(ctx, models.WalletOwner(42), "KZT")
	entry, err := svc.Deposit(ctx, acct.ID, decimal.RequireFromString("100"), "topup-1")
	res, err := svc.Transfer(ctx, acct.ID, otherID, decimal.RequireFromString("30"), "")

	// Stock moves address accounts by owner; the destination row is
	// created on first use.
	res, err = svc.TransferByOwner(ctx,
	    models.StockOwner(productID, fromWarehouse),
	    models.StockOwner(productID, toWarehouse),
	    quantity.UnitStock, decimal.NewFromInt(5), "move-7")

Error Handling:

Failures are sentinels of package internal/errors:
- ErrInvalidAmount: amount is not positive at the account's scale
- ErrInvalidOperation: self-transfer or a malformed owner/unit
- ErrAccountNotFound: an addressed account does not exist
- ErrUnitMismatch: source and destination hold different units
- ErrInsufficientFunds: the debit would make the balance negative
- ErrContention: lock waits kept timing out after the configured retries

Only ErrContention is retried, up to Config.MaxRetries times with doubling
backoff. Everything else is deterministic and returned on the first attempt.
*/
package ledger
