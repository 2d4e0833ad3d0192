package machine

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/e1732a364fed/forwardproxy/tlsLayer"
	"github.com/e1732a364fed/forwardproxy/utils"
	"go.uber.org/zap"
)

/*
curl -k -u admin:pass https://127.0.0.1:48345/api/allstate
curl -k -u admin:pass -X POST https://127.0.0.1:48345/api/reloadRules
*/

const defaultApiPathPrefix = "/api"

// runApiServer 非阻塞. 监听失败时返回错误.
func (m *M) runApiServer() error {
	conf := m.ApiServer
	prefix := conf.PathPrefix
	if prefix == "" {
		prefix = defaultApiPathPrefix
	}

	ser := newApiServer("admin", conf.AdminPass)
	ser.PathPrefix = prefix

	mux := http.NewServeMux()

	ser.addServerHandle(mux, "allstate", func(w http.ResponseWriter, r *http.Request) {
		m.PrintAllState(w)
	})
	ser.addServerHandle(mux, "reloadRules", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := m.ReloadRules(); err != nil {
			if ce := utils.CanLogWarn("api server reload rules failed"); ce != nil {
				ce.Write(zap.Error(err))
			}
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(err.Error()))
			return
		}
		w.Write([]byte("ok"))
	})

	lis, err := net.Listen("tcp", conf.Addr)
	if err != nil {
		return utils.TransportErr("api server listen", err)
	}

	srv := &http.Server{
		Handler:      mux,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	scheme := "https://"
	if conf.PlainHttp {
		scheme = "http://"
	} else if conf.CertFile == "" || conf.KeyFile == "" {
		utils.Warn("api server will use tls but key or cert file not provided, use random cert instead")
		srv.TLSConfig = &tls.Config{
			Certificates: tlsLayer.GenerateRandomTLSCert(), //curl -k
		}
	}

	m.apiServer = srv
	m.apiListener = lis

	utils.Info("Start Api Server at " + scheme + lis.Addr().String() + prefix)

	go func() {
		var err error
		if conf.PlainHttp {
			err = srv.Serve(lis)
		} else {
			err = srv.ServeTLS(lis, conf.CertFile, conf.KeyFile)
		}
		if err != nil && err != http.ErrServerClosed {
			if ce := utils.CanLogErr("api server stopped"); ce != nil {
				ce.Write(zap.Error(err))
			}
		}
	}()
	return nil
}

type auth struct {
	expectedUsernameHash [32]byte
	expectedPasswordHash [32]byte
}

type apiServer struct {
	admin_auth auth
	nopass     bool
	PathPrefix string
}

func newApiServer(user, pass string) *apiServer {
	s := new(apiServer)

	if pass != "" {
		s.admin_auth.expectedUsernameHash = sha256.Sum256([]byte(user))
		s.admin_auth.expectedPasswordHash = sha256.Sum256([]byte(pass))
	} else {
		s.nopass = true
	}
	return s
}

func (ser *apiServer) addServerHandle(mux *http.ServeMux, name string, f http.HandlerFunc) {
	mux.HandleFunc(ser.PathPrefix+"/"+name, ser.basicAuth(f))
}

func (ser *apiServer) basicAuth(realfunc http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ser.nopass {
			un, pass, ok := r.BasicAuth()
			if !ok || !ser.admin_auth.match(un, pass) {
				w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		if ce := utils.CanLogInfo("api server got new request"); ce != nil {
			ce.Write(zap.String("method", r.Method), zap.String("requestURL", utils.Truncate(r.RequestURI, 128)))
		}
		realfunc(w, r)
	}
}

func (a *auth) match(un, pass string) bool {
	usernameHash := sha256.Sum256([]byte(un))
	passwordHash := sha256.Sum256([]byte(pass))

	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], a.expectedUsernameHash[:]) == 1
	passwordMatch := subtle.ConstantTimeCompare(passwordHash[:], a.expectedPasswordHash[:]) == 1
	return usernameMatch && passwordMatch
}
