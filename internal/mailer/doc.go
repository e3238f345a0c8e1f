// Package mailer delivers the HTML digest through SendGrid's v3 mail send
// API. A non-2xx answer is returned as *DeliveryError.
package mailer
