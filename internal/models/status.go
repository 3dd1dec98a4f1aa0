package models

// Claim status codes. Both vocabularies are accepted; the server does not
// reject codes outside these lists.
const (
	StatusWaiting  = "waiting"
	StatusInReview = "in-review"
	StatusUnpaid   = "unpaid"
	StatusDenied   = "denied"
	StatusPaidLow  = "paid"

	StatusPaid            = "PAID"
	StatusPaidToOtherProv = "PAID_TO_OTHER_PROV"
	StatusInProcess       = "INPRCS"
	StatusPending         = "PENDING"
	StatusRejected        = "REJECTED"
	StatusIneligible      = "INEL"
)

// PaidStatuses are the terminal states; a claim in one of them has no follow-up
var PaidStatuses = []string{StatusPaidLow, StatusPaid, StatusPaidToOtherProv}

// IsPaidStatus reports whether s is a terminal paid state
func IsPaidStatus(s string) bool {
	for _, p := range PaidStatuses {
		if s == p {
			return true
		}
	}
	return false
}

// IsPaid is IsPaidStatus for an optional status
func IsPaid(status *string) bool {
	return status != nil && IsPaidStatus(*status)
}

// IsPendingStatus reports whether a claim still awaits processing
func IsPendingStatus(status *string) bool {
	return status == nil || *status == "" || *status == StatusInProcess
}
