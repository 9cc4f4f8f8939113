package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"fireguard/internal/models"
	"fireguard/internal/store"
)

type contextKey string

// deviceKey carries the authenticated device through the request context.
const deviceKey contextKey = "device"

// DeviceFromContext returns the device authenticated by DeviceAuth, if any.
func DeviceFromContext(ctx context.Context) (*models.Device, bool) {
	d, ok := ctx.Value(deviceKey).(*models.Device)
	return d, ok
}

// DeviceAuth authenticates ingestion calls with the x-device-id and x-api-key
// headers. The key is checked against the device's stored bcrypt hash. Key
// issuance and rotation live outside this service.
func DeviceAuth(devices store.DeviceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("x-api-key")
			if key == "" {
				authError(w, http.StatusUnauthorized, "x-api-key required")
				return
			}

			deviceID, err := strconv.ParseInt(r.Header.Get("x-device-id"), 10, 64)
			if err != nil || deviceID <= 0 {
				authError(w, http.StatusBadRequest, "x-device-id required")
				return
			}

			device, err := devices.GetDevice(r.Context(), deviceID)
			if err == store.ErrNotFound {
				authError(w, http.StatusNotFound, "device not found")
				return
			}
			if err != nil {
				authError(w, http.StatusInternalServerError, "device lookup failed")
				return
			}

			if bcrypt.CompareHashAndPassword([]byte(device.APIKeyHash), []byte(key)) != nil {
				authError(w, http.StatusForbidden, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), deviceKey, device)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"error": message})
}
