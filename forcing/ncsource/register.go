// register.go wires the NetCDF reader into forcing.OpenSourceFunc, so that importing
// this package makes file inputs in run configurations readable.
package ncsource

import "github.com/simforcing/forcing/forcing"

func init() {
	forcing.OpenSourceFunc = func(path string) (forcing.DataSource, error) {
		return Open(path)
	}
}
