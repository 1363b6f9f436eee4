// Package license implements license validation and the license lifecycle.
//
// # Validation
//
// Engine.Validate runs the ordered pipeline behind POST /api/validate. The
// first failing check wins:
//
//  1. source IP blacklisted
//  2. HWID blacklisted
//  3. requesting Discord ID blacklisted
//  4. key missing
//  5. Discord ID required by settings but missing
//  6. unknown key
//  7. product missing
//  8. product requires a HWID and none was sent
//  9. license owner blacklisted
//  10. requester is neither owner nor sub-user
//  11. expiry date passed (the license is stored as expired)
//  12. stored status not active
//  13. IP slot allocation
//  14. HWID slot allocation
//  15. commit
//
// Steps 6 to 15 run inside one read-modify-write of the license collection,
// so concurrent validations cannot bind more identifiers than the limit
// allows. Slot changes are only written when the whole pipeline passes.
//
// Every attempt that reaches a decision appends one entry to the validation
// log. Store failures produce a generic 500 and are only logged.
//
// # Lifecycle
//
// Service holds the create, renew, status, sub-user and identity operations
// used by the admin API, the Discord bot, voucher redemption and marketplace
// ingestion.
package license
