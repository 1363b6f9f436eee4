package license

import (
	"time"

	"licensepanel/pkg/contracts/domain"
)

// SuccessBody is returned for a passing validation. Optional parts are
// selected by the validation response settings.
type SuccessBody struct {
	Success  bool           `json:"success"`
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	License  map[string]any `json:"license,omitempty"`
	Customer map[string]any `json:"customer,omitempty"`
	Product  map[string]any `json:"product,omitempty"`
}

// FailureBody is returned for every failing validation.
type FailureBody struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func failureBody(message string) FailureBody {
	return FailureBody{Success: false, Status: string(domain.LogFailure), Message: message}
}

// InternalErrorBody is returned when a request never reaches the pipeline.
func InternalErrorBody() FailureBody {
	return failureBody(internalErrorMessage)
}

// ShapeSuccess builds the success body for lic and product according to cfg.
// customer_since is the license creation date, and product.enabled is always
// true; neither is derived from other records.
func ShapeSuccess(cfg domain.ValidationResponseSettings, lic domain.License, product domain.Product) SuccessBody {
	body := SuccessBody{Success: true, Status: string(domain.LogSuccess)}

	if cfg.CustomMessage.Enabled {
		body.Message = cfg.CustomMessage.Text
		if body.Message == "" {
			body.Message = domain.DefaultValidMessage
		}
	}

	if f := cfg.License; f.Enabled {
		out := map[string]any{}
		if f.Key {
			out["key"] = lic.Key
		}
		if f.Status {
			out["status"] = lic.Status
		}
		if f.ExpiresAt {
			if lic.ExpiresAt != nil {
				out["expires_at"] = lic.ExpiresAt.UTC().Format(time.RFC3339)
			} else {
				out["expires_at"] = nil
			}
		}
		if f.IssueDate {
			out["issue_date"] = lic.CreatedAt.UTC().Format(time.RFC3339)
		}
		if f.MaxIPs {
			out["max_ips"] = lic.MaxIPs.Int()
		}
		if f.UsedIPs {
			out["used_ips"] = len(lic.AllowedIPs)
		}
		body.License = nonEmpty(out)
	}

	if f := cfg.Customer; f.Enabled {
		out := map[string]any{}
		if f.ID {
			out["id"] = lic.DiscordID
		}
		if f.DiscordID {
			out["discord_id"] = lic.DiscordID
		}
		if f.CustomerSince {
			out["customer_since"] = lic.CreatedAt.UTC().Format(time.RFC3339)
		}
		body.Customer = nonEmpty(out)
	}

	if f := cfg.Product; f.Enabled {
		out := map[string]any{}
		if f.ID {
			out["id"] = product.ID
		}
		if f.Name {
			out["name"] = product.Name
		}
		if f.ShowEnabled {
			out["enabled"] = true
		}
		body.Product = nonEmpty(out)
	}

	return body
}

func nonEmpty(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	return m
}
