// Package auth provides the account and token layer of the ES Parfumerie
// storefront: registration, login, admin login, profile and password updates,
// plus the administrative account listing and activation endpoints.
//
// Admin bootstrap:
//   - One operator configured email is the distinguished admin. The first
//     login with that email materialises the admin row through
//     AdminBootstrapper.EnsureAdmin. Racing first logins converge on a single
//     row, the loser of the insert re-reads it. An existing row with another
//     role is promoted before the password is checked. Disabled admins are
//     never reactivated.
//
// Tokens:
//   - TokenService signs HS256 JWTs carrying sub, uid, role and jti. Customer
//     tokens last seven days, admin tokens one day and carry the "all"
//     permission when issued by AdminLogin. A RevocationStore, usually Redis,
//     lets Logout invalidate a token before it expires.
//
// Activity sinks:
//   - ActivitySink receives audit events for registrations, logins, profile
//     changes and bootstrap decisions. Sinks run best effort, errors are
//     logged and never fail the request. See the activitymap package for a
//     logger backed sink.
//
// Errors:
//   - Every failure is a go-errors *Error carrying a category and a text
//     code. Match them with errors.Is against the exported sentinels,
//     StatusCode maps the category to an HTTP status.
package auth
