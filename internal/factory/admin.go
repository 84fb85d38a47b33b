package factory

import (
	"fmt"
	"net/http"
	"time"

	"github.com/openshift-assisted/fleet-telemetry/internal/admin"
	"github.com/openshift-assisted/fleet-telemetry/internal/config"
	"github.com/openshift-assisted/fleet-telemetry/internal/log"
)

func CreateAdminServer(conf config.Admin, backend admin.Backend) *http.Server {
	ret := &http.Server{Addr: fmt.Sprintf(":%v", conf.Port)}
	ret.SetKeepAlivesEnabled(true)
	ret.IdleTimeout = 5 * time.Second
	ret.ReadHeaderTimeout = 5 * time.Second

	ret.Handler = admin.NewRouter(backend, log.Component("admin"))

	return ret
}
