package contexts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fernhill/clienthub/internal/log"
)

// GenerateRequestID generates a request id, format as ch-{{uuid}}.
func GenerateRequestID() string {
	return fmt.Sprintf("ch-%s", uuid.New().String())
}

// WithRequestID stores the request id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	container := getContainer(ctx)
	container.RequestID = &requestID

	return withContainer(ctx, container)
}

// GetRequestID retrieves the request id from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.RequestID != nil {
		return *container.RequestID, true
	}

	return "", false
}

// WithDeviceID stores the device id in the context. The device id keys the
// per-browser session manager.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	container := getContainer(ctx)
	container.DeviceID = &deviceID

	return withContainer(ctx, container)
}

// GetDeviceID retrieves the device id from the context.
func GetDeviceID(ctx context.Context) (string, bool) {
	container := getContainer(ctx)
	if container.DeviceID != nil {
		return *container.DeviceID, true
	}

	return "", false
}

// AddError appends an error to the context container for access logging.
func AddError(ctx context.Context, err error) {
	container := getContainer(ctx)
	container.Errors = append(container.Errors, err)
}

// GetErrors retrieves errors recorded in the context.
func GetErrors(ctx context.Context) []error {
	return getContainer(ctx).Errors
}

// LogFields adds request id and device id to log entries if they exist in the
// context. Registered as a log hook at startup.
func LogFields(ctx context.Context, msg string, fields ...log.Field) []log.Field {
	if ctx == nil {
		return fields
	}

	if requestID, ok := GetRequestID(ctx); ok {
		fields = append(fields, log.String("request_id", requestID))
	}

	if deviceID, ok := GetDeviceID(ctx); ok {
		fields = append(fields, log.String("device_id", deviceID))
	}

	return fields
}
