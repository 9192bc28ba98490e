package handlers

import (
	"context"

	"github.com/netonboard/netonboard/pkg/telemetry"
)

// analyticsBody is the payload of the AVR global settings, in tmsh key names.
type analyticsBody struct {
	DebugMode          string   `json:"avrd-debug-mode"`
	Interval           int      `json:"avrd-interval,omitempty"`
	OffboxProtocol     string   `json:"offbox-protocol"`
	OffboxTCPAddresses []string `json:"offbox-tcp-addresses,omitempty"`
	OffboxTCPPort      int      `json:"offbox-tcp-port,omitempty"`
	UseOffbox          string   `json:"use-offbox"`
}

// AnalyticsHandler applies Common.Analytics.
type AnalyticsHandler struct {
	decl   *Declaration
	device Device
	logger *telemetry.Logger
}

// NewAnalyticsHandler creates an analytics handler.
func NewAnalyticsHandler(decl *Declaration, device Device, logger *telemetry.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &AnalyticsHandler{decl: decl, device: device, logger: logger.NewComponentLogger("analytics")}
}

// Name implements Handler.
func (h *AnalyticsHandler) Name() string { return "Analytics" }

// Process implements Handler.
func (h *AnalyticsHandler) Process(ctx context.Context) error {
	h.logger.Debug("processing analytics declaration")

	if h.decl == nil || h.decl.Common == nil || h.decl.Common.Analytics == nil {
		return nil
	}

	return h.device.Replace(ctx, PathAnalytics, translateAnalytics(h.decl.Common.Analytics))
}

func translateAnalytics(a *Analytics) analyticsBody {
	protocol := a.OffboxProtocol
	if protocol == "" {
		protocol = "none"
	}

	return analyticsBody{
		DebugMode:          enabledDisabled(a.DebugEnabled),
		Interval:           a.Interval,
		OffboxProtocol:     protocol,
		OffboxTCPAddresses: a.OffboxTCPAddresses,
		OffboxTCPPort:      a.OffboxTCPPort,
		UseOffbox:          enabledDisabled(a.OffboxEnabled),
	}
}
