// Package sender routes composed messages to delivery providers.
//
// A Provider is one transport (Resend, SMTP). The Registry holds providers by
// name, and Failover walks an ordered list of them, delivering through the
// first that succeeds. Callers can also pin a single provider by name,
// bypassing the failover order.
package sender
