// Package types defines the entity records, the Backend interface both
// storage implementations satisfy, configuration, and the standard errors of
// the caja point-of-sale data core.
package types
