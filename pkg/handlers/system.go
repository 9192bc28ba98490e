package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"

	"github.com/netonboard/netonboard/pkg/telemetry"
)

// DHCP request options that conflict with statically declared settings.
const (
	dhcpOptionDomainNameServers = "domain-name-servers"
	dhcpOptionDomainName        = "domain-name"
	dhcpOptionNTPServers        = "ntp-servers"
)

// Resolver looks up host names. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

type dnsBody struct {
	NameServers []string `json:"nameServers"`
	Search      []string `json:"search"`
}

type ntpBody struct {
	Servers  []string `json:"servers"`
	Timezone string   `json:"timezone,omitempty"`
}

type dbVariableBody struct {
	Value string `json:"value"`
}

type globalSettingsBody struct {
	Hostname string `json:"hostname"`
}

type dhcpConfig struct {
	RequestOptions []string `json:"requestOptions"`
}

// SystemOption configures a SystemHandler.
type SystemOption func(*SystemHandler)

// WithResolver sets the resolver used to check NTP server names.
func WithResolver(r Resolver) SystemOption {
	return func(h *SystemHandler) { h.resolver = r }
}

// SystemHandler applies the system settings of Common: DB variables, DNS,
// NTP, the hostname, users and the license, in that order.
type SystemHandler struct {
	decl     *Declaration
	device   Device
	resolver Resolver
	logger   *telemetry.Logger
}

// NewSystemHandler creates a system handler.
func NewSystemHandler(decl *Declaration, device Device, logger *telemetry.Logger, opts ...SystemOption) *SystemHandler {
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	h := &SystemHandler{
		decl:     decl,
		device:   device,
		resolver: net.DefaultResolver,
		logger:   logger.NewComponentLogger("system"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements Handler.
func (h *SystemHandler) Name() string { return "System" }

// Process implements Handler.
func (h *SystemHandler) Process(ctx context.Context) error {
	h.logger.Debug("processing system declaration")

	if h.decl == nil || h.decl.Common == nil {
		return nil
	}
	common := h.decl.Common

	if err := h.processDbVariables(ctx, common.DbVariables); err != nil {
		return err
	}
	// DNS goes first so NTP server names can be resolved by the device.
	if err := h.processDNS(ctx, common.DNS); err != nil {
		return err
	}
	if err := h.processNTP(ctx, common.NTP); err != nil {
		return err
	}
	if err := h.processHostname(ctx, common.Hostname); err != nil {
		return err
	}
	if err := h.processUsers(ctx, common.User); err != nil {
		return err
	}
	return h.processLicense(ctx, common.License)
}

func (h *SystemHandler) processDbVariables(ctx context.Context, vars map[string]interface{}) error {
	if len(vars) == 0 {
		return nil
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h.logger.Debugf("setting db variable %s", name)
		body := dbVariableBody{Value: fmt.Sprint(vars[name])}
		if err := h.device.Modify(ctx, PathDbVariables+"/"+name, body); err != nil {
			return fmt.Errorf("failed to set db variable %s: %w", name, err)
		}
	}
	return nil
}

func (h *SystemHandler) processDNS(ctx context.Context, dns *DNS) error {
	if dns == nil {
		return nil
	}

	body := dnsBody{NameServers: dns.NameServers, Search: dns.Search}
	if body.NameServers == nil {
		body.NameServers = []string{}
	}
	if body.Search == nil {
		body.Search = []string{}
	}
	if err := h.device.Replace(ctx, PathDNS, body); err != nil {
		return fmt.Errorf("failed to configure DNS: %w", err)
	}

	return h.disableDHCPOptions(ctx, dhcpOptionDomainNameServers, dhcpOptionDomainName)
}

func (h *SystemHandler) processNTP(ctx context.Context, ntp *NTP) error {
	if ntp == nil {
		return nil
	}

	for _, server := range ntp.Servers {
		if net.ParseIP(server) != nil {
			continue
		}
		if _, err := h.resolver.LookupHost(ctx, server); err != nil {
			return fmt.Errorf("unable to resolve host %s: %w", server, err)
		}
	}

	servers := ntp.Servers
	if servers == nil {
		servers = []string{}
	}
	if err := h.device.Replace(ctx, PathNTP, ntpBody{Servers: servers, Timezone: ntp.Timezone}); err != nil {
		return fmt.Errorf("failed to configure NTP: %w", err)
	}

	return h.disableDHCPOptions(ctx, dhcpOptionNTPServers)
}

func (h *SystemHandler) processHostname(ctx context.Context, hostname string) error {
	if hostname == "" {
		return nil
	}
	if err := h.device.Modify(ctx, PathGlobalSettings, globalSettingsBody{Hostname: hostname}); err != nil {
		return fmt.Errorf("failed to set hostname: %w", err)
	}
	return nil
}

// disableDHCPOptions stops the management DHCP client from requesting the
// given options so it does not overwrite declared values.
func (h *SystemHandler) disableDHCPOptions(ctx context.Context, options ...string) error {
	raw, err := h.device.Get(ctx, PathManagementDHCP)
	if err != nil {
		return fmt.Errorf("failed to read management DHCP config: %w", err)
	}

	var cfg dhcpConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("failed to decode management DHCP config: %w", err)
	}

	drop := make(map[string]bool, len(options))
	for _, o := range options {
		drop[o] = true
	}

	kept := make([]string, 0, len(cfg.RequestOptions))
	for _, o := range cfg.RequestOptions {
		if !drop[o] {
			kept = append(kept, o)
		}
	}
	if len(kept) == len(cfg.RequestOptions) {
		return nil
	}

	h.logger.Debugf("removing DHCP request options %v", options)
	if err := h.device.Modify(ctx, PathManagementDHCP, dhcpConfig{RequestOptions: kept}); err != nil {
		return fmt.Errorf("failed to update management DHCP config: %w", err)
	}
	return nil
}
