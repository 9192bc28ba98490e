package handlers

import (
	"context"

	"github.com/netonboard/netonboard/pkg/telemetry"
)

// gslbGeneralBody is the payload of the GSLB general settings.
type gslbGeneralBody struct {
	Synchronization              string `json:"synchronization"`
	SynchronizationGroupName     string `json:"synchronizationGroupName"`
	SynchronizationTimeTolerance int    `json:"synchronizationTimeTolerance"`
	SynchronizationTimeout       int64  `json:"synchronizationTimeout"`
}

// GSLBHandler applies Common.GSLBGlobals.
type GSLBHandler struct {
	decl   *Declaration
	device Device
	logger *telemetry.Logger
}

// NewGSLBHandler creates a GSLB handler.
func NewGSLBHandler(decl *Declaration, device Device, logger *telemetry.Logger) *GSLBHandler {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	return &GSLBHandler{decl: decl, device: device, logger: logger.NewComponentLogger("gslb")}
}

// Name implements Handler.
func (h *GSLBHandler) Name() string { return "GSLB" }

// Process implements Handler.
func (h *GSLBHandler) Process(ctx context.Context) error {
	h.logger.Debug("processing GSLB declaration")

	if h.decl == nil || h.decl.Common == nil || h.decl.Common.GSLBGlobals == nil {
		return nil
	}

	general := h.decl.Common.GSLBGlobals.General
	if general == nil {
		return nil
	}

	sync := "no"
	if general.SynchronizationEnabled {
		sync = "yes"
	}

	return h.device.Modify(ctx, PathGSLBGeneral, gslbGeneralBody{
		Synchronization:              sync,
		SynchronizationGroupName:     general.SynchronizationGroupName,
		SynchronizationTimeTolerance: general.SynchronizationTimeTolerance,
		SynchronizationTimeout:       general.SynchronizationTimeout,
	})
}
