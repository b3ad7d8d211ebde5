package storage

// Package storage provides a minimal persistence layer for delivery history.
//
// Every report send (live or simulated) is appended as one DeliveryEntry so
// outcomes can be inspected after the fact. It is an audit trail only; no
// component reads it back to drive redelivery.
