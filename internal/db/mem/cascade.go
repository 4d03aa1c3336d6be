package mem

import "fmt"

// deleteOwnedBy removes every row whose owner equals uid. It is the single
// cascade primitive shared by account reset and deletion.
//
// Every cascaded table keys rows by an identifier and stamps each row with
// its owning account uid; a row without an owner cannot be attributed to any
// account and would silently survive every cascade, so encountering one is
// an unrecoverable integrity violation and panics rather than returning.
func deleteOwnedBy[R any](table map[string]R, owner func(R) string, uid string) {
	for key, row := range table {
		rowOwner := owner(row)
		if rowOwner == "" {
			panic(fmt.Sprintf("account store integrity: row %q has no owner", key))
		}
		if rowOwner == uid {
			delete(table, key)
		}
	}
}
