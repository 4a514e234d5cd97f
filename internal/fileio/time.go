package fileio

import "time"

// unixToTime converts a unix-seconds timestamp (the core's on-wire time
// representation) into a time.Time for the os.Chtimes call.
func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0)
}
