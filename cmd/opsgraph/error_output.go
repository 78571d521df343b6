package main

import (
	"encoding/json"
	"fmt"
	"strings"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

func writeJSONOutput(output any, exitCode int) int {
	encoded, err := marshalOutputWithErrorEnvelope(output, exitCode)
	if err != nil {
		fmt.Println(`{"ok":false,"error":"failed to encode output","error_code":"encode_failed","error_category":"internal_failure","retryable":false}`)
		return exitInternalFailure
	}
	fmt.Println(string(encoded))
	return exitCode
}

// marshalOutputWithErrorEnvelope fills the error_code, error_category,
// retryable and hint fields of a failed output from its exit code when the
// command did not set them.
func marshalOutputWithErrorEnvelope(output any, exitCode int) ([]byte, error) {
	encoded, err := json.Marshal(output)
	if err != nil {
		return nil, err
	}
	result := map[string]any{}
	if err := json.Unmarshal(encoded, &result); err != nil {
		return nil, err
	}
	errorText := strings.TrimSpace(asString(result["error"]))
	if errorText == "" {
		return json.Marshal(result)
	}
	if strings.TrimSpace(asString(result["error_code"])) == "" {
		result["error_code"] = defaultErrorCode(exitCode)
	}
	if strings.TrimSpace(asString(result["error_category"])) == "" {
		result["error_category"] = string(defaultErrorCategory(exitCode))
	}
	if _, exists := result["retryable"]; !exists {
		result["retryable"] = false
	}
	if strings.TrimSpace(asString(result["hint"])) == "" {
		result["hint"] = defaultHint(exitCode)
	}
	return json.Marshal(result)
}

func exitCodeForError(err error, fallbackExit int) int {
	if err == nil {
		return exitOK
	}
	switch coreerrors.CategoryOf(err) {
	case coreerrors.CategoryInvalidInput:
		return exitInvalidInput
	case coreerrors.CategoryNotFound:
		return exitNotFound
	case coreerrors.CategoryPermissionDenied:
		return exitPermissionDenied
	case coreerrors.CategoryConflict:
		return exitConflict
	case coreerrors.CategoryStorageFailure, coreerrors.CategoryInternalFailure:
		return exitInternalFailure
	}
	return fallbackExit
}

func defaultErrorCategory(exitCode int) coreerrors.Category {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CategoryInvalidInput
	case exitNotFound:
		return coreerrors.CategoryNotFound
	case exitPermissionDenied:
		return coreerrors.CategoryPermissionDenied
	case exitConflict:
		return coreerrors.CategoryConflict
	default:
		return coreerrors.CategoryInternalFailure
	}
}

func defaultErrorCode(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return coreerrors.CodeInvalidInput
	case exitNotFound:
		return coreerrors.CodeNotFound
	case exitPermissionDenied:
		return coreerrors.CodePermissionDenied
	case exitConflict:
		return "conflict"
	default:
		return "internal_failure"
	}
}

func defaultHint(exitCode int) string {
	switch exitCode {
	case exitInvalidInput:
		return "check command usage and input values"
	case exitNotFound:
		return "check the id and retry"
	case exitPermissionDenied:
		return "retry with --role or a user that holds the required role"
	case exitConflict:
		return "resolve the conflicting entity and retry"
	default:
		return "retry after checking the database file and logs"
	}
}

func asString(value any) string {
	text, _ := value.(string)
	return text
}
