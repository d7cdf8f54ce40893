package lamps

// lampDriver switches one indicator output.
//
// Close should be best-effort and leave the lamp dark.
type lampDriver interface {
	Set(on bool) error
	Close() error
}
