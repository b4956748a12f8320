// Package model defines the typed intermediate representation of a
// structural equation model specification.
//
// A Spec is produced by the syntax package from lavaan-style model text and
// consumed by the sem package, which maps it onto RAM matrices for
// estimation. The IR is deliberately small: latent definitions (measurement
// equations), regression paths (structural equations), and explicit
// covariance terms. Everything else the estimator needs — free-parameter
// enumeration, degree-of-freedom accounting, identification checks — is
// derived from these three lists deterministically.
package model
