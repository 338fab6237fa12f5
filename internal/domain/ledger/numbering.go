package ledger

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SequenceKey returns the counter key a transaction number is drawn from.
// Counters are per company, per type and per accounting month.
func SequenceKey(txnType TransactionType, accountingDate time.Time) string {
	return fmt.Sprintf("%s-%s", txnType, accountingDate.Format("200601"))
}

// FormatTransactionNumber renders {TYPE}-{YYYYMM}-{sequence}
func FormatTransactionNumber(txnType TransactionType, accountingDate time.Time, seq int64) string {
	return fmt.Sprintf("%s-%06d", SequenceKey(txnType, accountingDate), seq)
}

// ParseTransactionNumber splits a transaction number into its parts
func ParseTransactionNumber(number string) (TransactionType, PeriodKey, int64, error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		return "", PeriodKey{}, 0, ErrInvalidInput.WithMessage("malformed transaction number %q", number)
	}
	txnType := TransactionType(parts[0])
	if !txnType.IsValid() {
		return "", PeriodKey{}, 0, ErrInvalidInput.WithMessage("unknown transaction type in %q", number)
	}
	month, err := time.Parse("200601", parts[1])
	if err != nil {
		return "", PeriodKey{}, 0, ErrInvalidInput.WithMessage("malformed month in %q", number)
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || seq < 1 {
		return "", PeriodKey{}, 0, ErrInvalidInput.WithMessage("malformed sequence in %q", number)
	}
	return txnType, PeriodOf(month), seq, nil
}
