package qof

import (
	"errors"
	"fmt"
)

// ErrorCode is a backend status code. Codes are grouped by family: generic
// backend codes start at 0, file I/O codes at 1000 and SQL codes at 3000.
// Backends may define their own codes; this package only stores and relays
// them.
type ErrorCode int

const (
	ErrBackendNoErr ErrorCode = iota
	ErrBackendNoHandler
	ErrBackendNoBackend
	ErrBackendBadURL
	ErrBackendNoSuchDB
	ErrBackendCantConnect
	ErrBackendConnLost
	ErrBackendLocked
	ErrBackendReadonly
	ErrBackendTooNew
	ErrBackendDataCorrupt
	ErrBackendServerErr
	ErrBackendAlloc
	ErrBackendPerm
	ErrBackendModified
	ErrBackendModDestroy
	ErrBackendMisc
)

const (
	ErrFileIOFileBadRead ErrorCode = iota + 1000
	ErrFileIOFileEmpty
	ErrFileIOFileNotFound
	ErrFileIOUnknownFileType
	ErrFileIOParseError
	ErrFileIOWriteError
)

const (
	ErrSQLMissingData ErrorCode = iota + 3000
	ErrSQLDBTooOld
	ErrSQLDBBusy
)

// noBackendMessage is returned by GetMessage on a nil handle.
const noBackendMessage = "ERR_BACKEND_NO_BACKEND"

var errorCodeNames = map[ErrorCode]string{
	ErrBackendNoErr:          "ERR_BACKEND_NO_ERR",
	ErrBackendNoHandler:      "ERR_BACKEND_NO_HANDLER",
	ErrBackendNoBackend:      "ERR_BACKEND_NO_BACKEND",
	ErrBackendBadURL:         "ERR_BACKEND_BAD_URL",
	ErrBackendNoSuchDB:       "ERR_BACKEND_NO_SUCH_DB",
	ErrBackendCantConnect:    "ERR_BACKEND_CANT_CONNECT",
	ErrBackendConnLost:       "ERR_BACKEND_CONN_LOST",
	ErrBackendLocked:         "ERR_BACKEND_LOCKED",
	ErrBackendReadonly:       "ERR_BACKEND_READONLY",
	ErrBackendTooNew:         "ERR_BACKEND_TOO_NEW",
	ErrBackendDataCorrupt:    "ERR_BACKEND_DATA_CORRUPT",
	ErrBackendServerErr:      "ERR_BACKEND_SERVER_ERR",
	ErrBackendAlloc:          "ERR_BACKEND_ALLOC",
	ErrBackendPerm:           "ERR_BACKEND_PERM",
	ErrBackendModified:       "ERR_BACKEND_MODIFIED",
	ErrBackendModDestroy:     "ERR_BACKEND_MOD_DESTROY",
	ErrBackendMisc:           "ERR_BACKEND_MISC",
	ErrFileIOFileBadRead:     "ERR_FILEIO_FILE_BAD_READ",
	ErrFileIOFileEmpty:       "ERR_FILEIO_FILE_EMPTY",
	ErrFileIOFileNotFound:    "ERR_FILEIO_FILE_NOT_FOUND",
	ErrFileIOUnknownFileType: "ERR_FILEIO_UNKNOWN_FILE_TYPE",
	ErrFileIOParseError:      "ERR_FILEIO_PARSE_ERROR",
	ErrFileIOWriteError:      "ERR_FILEIO_WRITE_ERROR",
	ErrSQLMissingData:        "ERR_SQL_MISSING_DATA",
	ErrSQLDBTooOld:           "ERR_SQL_DB_TOO_OLD",
	ErrSQLDBBusy:             "ERR_SQL_DB_BUSY",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ERR_BACKEND_CODE_%d", int(c))
}

// Err converts c into an error carrying msg. ErrBackendNoErr yields nil.
func (c ErrorCode) Err(msg string) error {
	if c == ErrBackendNoErr {
		return nil
	}
	return &BackendError{Code: c, Message: msg}
}

// ErrBackend is the sentinel every BackendError unwraps to.
var ErrBackend = errors.New("qof: backend error")

// BackendError pairs a popped error code with its message.
type BackendError struct {
	Code    ErrorCode
	Message string
}

func (e *BackendError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return fmt.Sprintf("qof: backend error %s", e.Code)
	}
	return fmt.Sprintf("qof: backend error %s: %s", e.Code, e.Message)
}

func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return ErrBackend
}

// Is matches another BackendError with the same code, so callers can write
// errors.Is(err, qof.ErrBackendLocked.Err("")).
func (e *BackendError) Is(target error) bool {
	var other *BackendError
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the ErrorCode carried by err, or ErrBackendNoErr for nil
// and ErrBackendMisc for errors that carry no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrBackendNoErr
	}
	var backendErr *BackendError
	if errors.As(err, &backendErr) && backendErr != nil {
		return backendErr.Code
	}
	return ErrBackendMisc
}
