package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Declaration is the typed view of the settings the handlers apply.
type Declaration struct {
	Common *Common `json:"Common"`
}

// Common holds the singleton settings of the Common partition.
type Common struct {
	Hostname    string                 `json:"hostname" validate:"omitempty,hostname_rfc1123"`
	DbVariables map[string]interface{} `json:"DbVariables"`
	DNS         *DNS                   `json:"DNS"`
	NTP         *NTP                   `json:"NTP"`
	Analytics   *Analytics             `json:"Analytics"`
	GSLBGlobals *GSLBGlobals           `json:"GSLBGlobals"`
	User        map[string]*User       `json:"User" validate:"dive,required"`
	License     *License               `json:"License"`
}

// User types.
const (
	UserTypeRoot    = "root"
	UserTypeRegular = "regular"
)

// User is a local account. Root only changes its password; regular users are
// created or updated.
type User struct {
	UserType        string          `json:"userType" validate:"required,oneof=root regular"`
	OldPassword     string          `json:"oldPassword" validate:"required_if=UserType root"`
	NewPassword     string          `json:"newPassword" validate:"required_if=UserType root"`
	Password        string          `json:"password"`
	PartitionAccess PartitionAccess `json:"partitionAccess" validate:"dive"`
	Shell           string          `json:"shell" validate:"omitempty,oneof=bash tmsh none"`
}

// PartitionRole grants a role on one partition.
type PartitionRole struct {
	Name string `json:"name" validate:"required"`
	Role string `json:"role" validate:"required,oneof=admin auditor guest manager operator user-manager application-editor certificate-manager irule-manager no-access resource-admin"`
}

// PartitionAccess lists partition roles in declaration order. It decodes from
// an object keyed by partition name.
type PartitionAccess []PartitionRole

// UnmarshalJSON implements json.Unmarshaler.
func (p *PartitionAccess) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("partitionAccess must be an object")
	}

	var out PartitionAccess
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var grant struct {
			Role string `json:"role"`
		}
		if err := dec.Decode(&grant); err != nil {
			return fmt.Errorf("partitionAccess %s: %w", name, err)
		}
		out = append(out, PartitionRole{Name: name, Role: grant.Role})
	}
	*p = out
	return nil
}

// License types.
const (
	LicenseTypeRegKey      = "regKey"
	LicenseTypeLicensePool = "licensePool"
)

// License describes how the device is licensed.
type License struct {
	LicenseType string   `json:"licenseType" validate:"required,oneof=regKey licensePool"`
	RegKey      string   `json:"regKey" validate:"required_if=LicenseType regKey"`
	AddOnKeys   []string `json:"addOnKeys" validate:"dive,required"`
	Overwrite   bool     `json:"overwrite"`
	LicensePool string   `json:"licensePool"`
}

// DNS configures the device's resolvers.
type DNS struct {
	NameServers []string `json:"nameServers" validate:"dive,ip"`
	Search      []string `json:"search" validate:"dive,required"`
}

// NTP configures time synchronisation.
type NTP struct {
	Servers  []string `json:"servers" validate:"dive,required"`
	Timezone string   `json:"timezone"`
}

// Analytics configures the AVR module's global settings.
type Analytics struct {
	DebugEnabled       bool     `json:"debugEnabled"`
	Interval           int      `json:"interval" validate:"omitempty,min=20,max=300"`
	OffboxProtocol     string   `json:"offboxProtocol" validate:"omitempty,oneof=https tcp"`
	OffboxTCPAddresses []string `json:"offboxTcpAddresses" validate:"dive,ip"`
	OffboxTCPPort      int      `json:"offboxTcpPort" validate:"min=0,max=65535"`
	OffboxEnabled      bool     `json:"offboxEnabled"`
}

// GSLBGlobals holds global GSLB settings.
type GSLBGlobals struct {
	General *GSLBGeneral `json:"general"`
}

// GSLBGeneral is the general section of the GSLB global settings.
type GSLBGeneral struct {
	SynchronizationEnabled       bool   `json:"synchronizationEnabled"`
	SynchronizationGroupName     string `json:"synchronizationGroupName"`
	SynchronizationTimeTolerance int    `json:"synchronizationTimeTolerance" validate:"min=0,max=600"`
	SynchronizationTimeout       int64  `json:"synchronizationTimeout" validate:"min=0,max=4294967295"`
}

var validate = validator.New()

// ParseDeclaration decodes and validates the handler settings of a declaration.
// Unrelated members are ignored.
func ParseDeclaration(data []byte) (*Declaration, error) {
	var decl Declaration
	if err := json.Unmarshal(data, &decl); err != nil {
		return nil, fmt.Errorf("failed to decode declaration: %w", err)
	}
	if err := validate.Struct(&decl); err != nil {
		return nil, fmt.Errorf("declaration validation failed: %w", err)
	}
	if decl.Common != nil {
		for name, u := range decl.Common.User {
			if (name == UserTypeRoot) != (u.UserType == UserTypeRoot) {
				return nil, fmt.Errorf("declaration validation failed: user %s has userType %s", name, u.UserType)
			}
		}
	}
	return &decl, nil
}
