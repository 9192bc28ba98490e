package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// errLicensePoolUnsupported is returned for BIG-IQ pool licensing.
var errLicensePoolUnsupported = errors.New("license pool licensing through BIG-IQ is not supported")

type rootPasswordBody struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type userBody struct {
	Name            string          `json:"name"`
	Password        string          `json:"password,omitempty"`
	PartitionAccess []PartitionRole `json:"partition-access,omitempty"`
	Shell           string          `json:"shell,omitempty"`
}

type licenseInstallBody struct {
	Command         string   `json:"command"`
	RegistrationKey string   `json:"registrationKey"`
	AddOnKeys       []string `json:"addOnKeys,omitempty"`
}

type registration struct {
	RegistrationKey string `json:"registrationKey"`
}

func (h *SystemHandler) processUsers(ctx context.Context, users map[string]*User) error {
	if len(users) == 0 {
		return nil
	}

	names := make([]string, 0, len(users))
	for name := range users {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		u := users[name]
		if u.UserType == UserTypeRoot {
			h.logger.Debug("changing root password")
			body := rootPasswordBody{OldPassword: u.OldPassword, NewPassword: u.NewPassword}
			if err := h.device.Create(ctx, PathRootPassword, body); err != nil {
				return fmt.Errorf("failed to change root password: %w", err)
			}
			continue
		}

		body := userBody{
			Name:            name,
			Password:        u.Password,
			PartitionAccess: u.PartitionAccess,
			Shell:           u.Shell,
		}
		if err := h.createOrModify(ctx, PathUsers, name, body); err != nil {
			return fmt.Errorf("failed to configure user %s: %w", name, err)
		}
	}
	return nil
}

// createOrModify patches collection/name when it exists and posts body to
// the collection otherwise.
func (h *SystemHandler) createOrModify(ctx context.Context, collection, name string, body interface{}) error {
	_, err := h.device.Get(ctx, collection+"/"+name)
	switch {
	case err == nil:
		h.logger.Debugf("modifying %s/%s", collection, name)
		return h.device.Modify(ctx, collection+"/"+name, body)
	case isNotFound(err):
		h.logger.Debugf("creating %s/%s", collection, name)
		return h.device.Create(ctx, collection, body)
	default:
		return err
	}
}

func (h *SystemHandler) processLicense(ctx context.Context, license *License) error {
	if license == nil {
		return nil
	}
	if license.LicenseType == LicenseTypeLicensePool {
		return errLicensePoolUnsupported
	}

	if !license.Overwrite {
		raw, err := h.device.Get(ctx, PathRegistration)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("error licensing device: %w", err)
		}
		if err == nil {
			var reg registration
			if jsonErr := json.Unmarshal(raw, &reg); jsonErr == nil && reg.RegistrationKey != "" {
				h.logger.Info("device is already licensed")
				return nil
			}
		}
	}

	body := licenseInstallBody{
		Command:         "install",
		RegistrationKey: license.RegKey,
		AddOnKeys:       license.AddOnKeys,
	}
	if err := h.device.Create(ctx, PathLicense, body); err != nil {
		return fmt.Errorf("error licensing device: %w", err)
	}
	return nil
}
