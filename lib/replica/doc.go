// See client.go for the package overview.
package replica
