package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/careledger/careledger/pkg/audit"
	"github.com/careledger/careledger/pkg/directory"
	"github.com/careledger/careledger/pkg/middleware"
	"github.com/careledger/careledger/pkg/observability"
	"github.com/careledger/careledger/pkg/policy"
	"github.com/careledger/careledger/pkg/rbac"
	"github.com/careledger/careledger/pkg/tenant"
)

// Server represents the API server
type Server struct {
	router   *mux.Router
	db       *sql.DB
	registry *policy.Registry
	rules    *rbac.Store
	decider  *rbac.Decider
	dir      *directory.Service
	logger   *observability.Logger

	// invalidation fans rule changes out to every replica's decision cache
	invalidation *rbac.Invalidator
}

// Deps carries the collaborators the server wires together.
type Deps struct {
	DB           *sql.DB
	Registry     *policy.Registry
	Rules        *rbac.Store
	Decider      *rbac.Decider
	Directory    *directory.Service
	Scopes       *tenant.ScopeManager
	Identity     middleware.Identity
	AuditLogger  audit.Logger
	Logger       *observability.Logger
	Metrics      *observability.Metrics
	Invalidation *rbac.Invalidator
	SkipPrefixes []string
}

// NewServer creates the API server with the full middleware chain and all
// routes registered.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		db:           deps.DB,
		registry:     deps.Registry,
		rules:        deps.Rules,
		decider:      deps.Decider,
		dir:          deps.Directory,
		logger:       deps.Logger,
		invalidation: deps.Invalidation,
	}

	gate := middleware.NewGate(deps.Scopes, deps.Registry, deps.Logger, deps.Metrics, deps.SkipPrefixes)

	s.router.Use(mux.MiddlewareFunc(middleware.RequestID))
	s.router.Use(mux.MiddlewareFunc(observability.RecoverMiddleware(deps.Logger)))
	if deps.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(deps.Metrics.Middleware))
	}
	s.router.Use(mux.MiddlewareFunc(middleware.AuditContext(deps.AuditLogger)))
	s.router.Use(mux.MiddlewareFunc(middleware.Authenticate(deps.Identity, deps.Logger)))
	s.router.Use(mux.MiddlewareFunc(gate.Middleware))

	s.setupRoutes()
	return s
}

// setupRoutes configures all routes. Protected routes carry the
// "<resource>.<action>" name the gate keys its decision on.
func (s *Server) setupRoutes() {
	r := s.router

	// Claims
	r.HandleFunc("/claims", s.listClaims).Methods("GET").Name("claims.index")
	r.HandleFunc("/claims", s.createClaim).Methods("POST").Name("claims.create")
	r.HandleFunc("/claims/{id}", s.getClaim).Methods("GET").Name("claims.show")
	r.HandleFunc("/claims/{id}", s.updateClaim).Methods("PUT").Name("claims.update")
	r.HandleFunc("/claims/{id}", s.destroyClaim).Methods("DELETE").Name("claims.destroy")
	r.HandleFunc("/claims/{id}/submit", s.submitClaim).Methods("POST").Name("claims.submit")
	r.HandleFunc("/claims/{id}/void", s.voidClaim).Methods("POST").Name("claims.void")

	// Invoices and payments
	r.HandleFunc("/invoices", s.listInvoices).Methods("GET").Name("invoices.index")
	r.HandleFunc("/invoices/{id}", s.getInvoice).Methods("GET").Name("invoices.show")
	r.HandleFunc("/payments", s.listPayments).Methods("GET").Name("payments.index")
	r.HandleFunc("/payments", s.createPayment).Methods("POST").Name("payments.create")

	// Patients
	r.HandleFunc("/patients", s.listPatients).Methods("GET").Name("patients.index")
	r.HandleFunc("/patients", s.createPatient).Methods("POST").Name("patients.create")
	r.HandleFunc("/patients/{id}", s.getPatient).Methods("GET").Name("patients.show")

	// Clinical notes
	r.HandleFunc("/clinical_notes", s.listNotes).Methods("GET").Name("clinical_notes.index")
	r.HandleFunc("/clinical_notes/{id}", s.getNote).Methods("GET").Name("clinical_notes.show")
	r.HandleFunc("/clinical_notes/{id}/sign", s.signNote).Methods("POST").Name("clinical_notes.sign")
	r.HandleFunc("/clinical_notes/{id}/cosign", s.cosignNote).Methods("POST").Name("clinical_notes.cosign")

	// Reference data
	r.HandleFunc("/adjustment_codes", s.listAdjustmentCodes).Methods("GET").Name("adjustment_codes.index")
	r.HandleFunc("/diagnosis_codes", s.listDiagnosisCodes).Methods("GET").Name("diagnosis_codes.index")

	// Organization administration
	r.HandleFunc("/organization", s.getOrganization).Methods("GET").Name("organizations.show")
	r.HandleFunc("/organization", s.updateOrganization).Methods("PUT").Name("organizations.update")
	r.HandleFunc("/memberships", s.listMemberships).Methods("GET").Name("memberships.index")
	r.HandleFunc("/memberships/invite", s.inviteMember).Methods("POST").Name("memberships.invite")
	r.HandleFunc("/memberships/{id}", s.removeMember).Methods("DELETE").Name("memberships.destroy")

	// Role and rule management
	r.HandleFunc("/roles", s.listRoles).Methods("GET").Name("roles.index")
	r.HandleFunc("/roles/{role}/rules", s.listRoleRules).Methods("GET").Name("roles.show")
	r.HandleFunc("/roles/{role}/rules", s.createRoleRule).Methods("POST").Name("roles.update")
	r.HandleFunc("/roles/{role}/rules/{id}", s.deleteRoleRule).Methods("DELETE").Name("roles.update")

	// Gate-exempt routes: no tenant scope required.
	r.HandleFunc("/invitations/{token}/accept", s.acceptInvitation).Methods("POST")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional registrations.
func (s *Server) Router() *mux.Router {
	return s.router
}
