package market

import (
	"fmt"

	"github.com/rl1809/marketplace/internal/core/domain"
	"github.com/rl1809/marketplace/internal/core/host"
)

// Deposit credits the value supplied with the call to the caller's balance.
func (e *Engine) Deposit(tx *host.Tx) error {
	value := tx.Value()
	if value == 0 {
		return domain.ErrAmountZero
	}
	if err := e.receive(tx, value); err != nil {
		return err
	}
	if err := e.credit(tx, tx.Caller(), value); err != nil {
		return err
	}
	tx.Emit(e.account, domain.Deposited{Account: tx.Caller(), Amount: value})
	return nil
}

// WithdrawForUser pays amount of the caller's balance out to the caller. A
// failed payout reverts the debit.
func (e *Engine) WithdrawForUser(tx *host.Tx, amount domain.Amount) error {
	exit, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer exit()

	caller := tx.Caller()
	if amount == 0 {
		return domain.ErrAmountZero
	}
	if amount > e.balances[caller] {
		return fmt.Errorf("%w: balance %d, requested %d", domain.ErrInsufficientBalance, e.balances[caller], amount)
	}

	if err := e.debit(tx, caller, amount); err != nil {
		return err
	}
	host.Set(tx, &e.held, e.held-amount)
	tx.Emit(e.account, domain.Withdrawn{Account: caller, Amount: amount})
	return tx.Pay(caller, amount)
}

// WithdrawForPlatform pays accrued platform fees out to the admin.
func (e *Engine) WithdrawForPlatform(tx *host.Tx, amount domain.Amount) error {
	exit, err := e.guard.Enter()
	if err != nil {
		return err
	}
	defer exit()

	if err := e.onlyAdmin(tx); err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrAmountZero
	}
	if amount > e.platform {
		return fmt.Errorf("%w: platform %d, requested %d", domain.ErrInsufficientPlatformBalance, e.platform, amount)
	}

	host.Set(tx, &e.platform, e.platform-amount)
	host.Set(tx, &e.held, e.held-amount)
	tx.Emit(e.account, domain.PlatformWithdrawn{To: tx.Caller(), Amount: amount})
	return tx.Pay(tx.Caller(), amount)
}
