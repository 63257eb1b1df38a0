package school

import (
	"strings"

	"github.com/soyeahso/sprout/internal/domain"
)

// Canonical day names, in schedule order.
var Days = []string{"Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu", "Minggu"}

var daySynonyms = map[string]string{
	"senin": "Senin", "monday": "Senin", "mon": "Senin",
	"selasa": "Selasa", "tuesday": "Selasa", "tue": "Selasa", "tues": "Selasa",
	"rabu": "Rabu", "wednesday": "Rabu", "wed": "Rabu",
	"kamis": "Kamis", "thursday": "Kamis", "thu": "Kamis", "thurs": "Kamis",
	"jumat": "Jumat", "jum'at": "Jumat", "jumaat": "Jumat", "friday": "Jumat", "fri": "Jumat",
	"sabtu": "Sabtu", "saturday": "Sabtu", "sat": "Sabtu",
	"minggu": "Minggu", "ahad": "Minggu", "sunday": "Minggu", "sun": "Minggu",
}

var paymentSynonyms = map[string]string{
	"paid": domain.PaymentPaid, "lunas": domain.PaymentPaid, "sudah bayar": domain.PaymentPaid,
	"sudah dibayar": domain.PaymentPaid, "sudah lunas": domain.PaymentPaid, "settled": domain.PaymentPaid,

	"pending": domain.PaymentPending, "belum bayar": domain.PaymentPending, "belum dibayar": domain.PaymentPending,
	"belum lunas": domain.PaymentPending, "unpaid": domain.PaymentPending, "menunggu": domain.PaymentPending,
	"tertunda": domain.PaymentPending,

	"overdue": domain.PaymentOverdue, "terlambat": domain.PaymentOverdue, "telat": domain.PaymentOverdue,
	"late": domain.PaymentOverdue, "jatuh tempo": domain.PaymentOverdue, "lewat jatuh tempo": domain.PaymentOverdue,
	"tunggakan": domain.PaymentOverdue, "menunggak": domain.PaymentOverdue,
}

var genderSynonyms = map[string]string{
	"male": domain.GenderMale, "laki-laki": domain.GenderMale, "laki laki": domain.GenderMale,
	"lelaki": domain.GenderMale, "pria": domain.GenderMale, "boy": domain.GenderMale,
	"l": domain.GenderMale, "m": domain.GenderMale,

	"female": domain.GenderFemale, "perempuan": domain.GenderFemale, "wanita": domain.GenderFemale,
	"girl": domain.GenderFemale, "p": domain.GenderFemale, "f": domain.GenderFemale,
}

var semesterSynonyms = map[string]string{
	"1": "1", "i": "1", "semester 1": "1", "ganjil": "1", "semester ganjil": "1", "first": "1", "odd": "1",
	"2": "2", "ii": "2", "semester 2": "2", "genap": "2", "semester genap": "2", "second": "2", "even": "2",
}

// NormalizeDay maps an Indonesian or English day name to its canonical
// Indonesian form. The boolean reports whether the value was recognized;
// unrecognized input is returned trimmed for use as a substring filter.
func NormalizeDay(s string) (string, bool) {
	key := normKey(s)
	key = strings.TrimPrefix(key, "hari ")
	return lookup(daySynonyms, key, s)
}

// NormalizePaymentStatus maps a status phrase to paid, pending or overdue.
func NormalizePaymentStatus(s string) (string, bool) {
	return lookup(paymentSynonyms, normKey(s), s)
}

// NormalizeGender maps a gender term to male or female.
func NormalizeGender(s string) (string, bool) {
	return lookup(genderSynonyms, normKey(s), s)
}

// NormalizeSemester maps a semester phrase to "1" or "2".
func NormalizeSemester(s string) (string, bool) {
	return lookup(semesterSynonyms, normKey(s), s)
}

// DayIndex returns the position of a canonical day in the school week, or
// len(Days) for anything unrecognized so that it sorts last.
func DayIndex(day string) int {
	canonical, ok := NormalizeDay(day)
	if !ok {
		return len(Days)
	}
	for i, d := range Days {
		if d == canonical {
			return i
		}
	}
	return len(Days)
}

func normKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func lookup(table map[string]string, key, raw string) (string, bool) {
	if v, ok := table[key]; ok {
		return v, true
	}
	return strings.TrimSpace(raw), false
}
