// Package http implements the panel's HTTP handlers: the public validation
// endpoint, the BuiltByBit webhooks and the JWT protected admin API.
//
// Handlers stay thin. They decode and validate the request, call a service
// from internal/license, internal/blacklist, internal/voucher or
// internal/marketplace, and render the result. Each handler group exposes
// Routes() and is mounted by internal/app.
//
// # Routes
//
//	POST   /api/validate                              validation pipeline
//	POST   /api/webhooks/builtbybit                   purchase webhook
//	POST   /api/webhooks/builtbybit/placeholder       placeholder webhook
//	POST   /api/admin/login                           issue a bearer token
//	GET    /api/admin/me                              current admin
//	GET    /api/admin/stats                           dashboard overview
//	*      /api/admin/products[/{id}]                 product CRUD
//	*      /api/admin/licenses[/{key}[/...]]          license CRUD and lifecycle
//	*      /api/admin/blacklist[/{kind}/{value}]      bans with Discord cascade
//	GET|PUT /api/admin/settings                       settings document
//	*      /api/admin/vouchers[/{code}[/redeem]]      voucher batches
//	GET|DELETE /api/admin/logs[/bot]                  validation and bot logs
//	GET    /api/admin/export/{licenses,logs,bot-logs} xlsx or csv download
//	GET    /healthz                                   liveness and system stats
//
// # Error Handling
//
// Admin and webhook failures are RFC 7807 problem details rendered by
// internal/errors, which maps the services' sentinel errors to a status:
//
//	{
//	    "type": "/errors/license/slot-limit",
//	    "title": "Slot Limit Reached",
//	    "status": 409,
//	    "detail": "slot limit reached: ip limit is 1",
//	    "instance": "/api/admin/licenses/LF-7KQ2-M9XA-P4TD-W8NC/identities/ip"
//	}
//
// /api/validate is the exception: its status and body always come from the
// validation engine so clients see the same shape for every outcome.
//
// # Slot Limits
//
// Request bodies carry limits in their integer form: -2 disables IP
// tracking, -1 is unlimited and n >= 0 caps the slots. New licenses and
// vouchers default to one IP and unlimited HWIDs.
package http
