package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// CatalogServicePath is the path prefix of every CatalogService procedure.
const CatalogServicePath = "/splitledger.v1.CatalogService/"

// CatalogService procedures.
const (
	CatalogCreateGroupProcedure     = CatalogServicePath + "CreateGroup"
	CatalogGetGroupProcedure        = CatalogServicePath + "GetGroup"
	CatalogListGroupsProcedure      = CatalogServicePath + "ListGroups"
	CatalogAddGroupMembersProcedure = CatalogServicePath + "AddGroupMembers"
	CatalogCreateBillProcedure      = CatalogServicePath + "CreateBill"
	CatalogGetBillProcedure         = CatalogServicePath + "GetBill"
	CatalogListBillsProcedure       = CatalogServicePath + "ListBills"
)

var errNotGroupMember = errors.New("caller is not a member of the group")

// CatalogService manages the groups and bills the ledger settles.
type CatalogService struct {
	catalog storage.Catalog
}

// NewCatalogService creates a CatalogService with the given storage backend.
func NewCatalogService(catalog storage.Catalog) *CatalogService {
	return &CatalogService{catalog: catalog}
}

// NewCatalogServiceHandler builds the HTTP handler serving every CatalogService procedure.
func NewCatalogServiceHandler(svc *CatalogService, opts ...connect.HandlerOption) (string, http.Handler) {
	o := handlerOptions(opts)
	mux := http.NewServeMux()
	unary(mux, CatalogCreateGroupProcedure, svc.CreateGroup, o)
	unary(mux, CatalogGetGroupProcedure, svc.GetGroup, o)
	unary(mux, CatalogListGroupsProcedure, svc.ListGroups, o)
	unary(mux, CatalogAddGroupMembersProcedure, svc.AddGroupMembers, o)
	unary(mux, CatalogCreateBillProcedure, svc.CreateBill, o)
	unary(mux, CatalogGetBillProcedure, svc.GetBill, o)
	unary(mux, CatalogListBillsProcedure, svc.ListBills, o)
	return CatalogServicePath, mux
}

// storeError maps catalog storage errors to Connect errors.
func storeError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// withCaller returns members with caller appended when absent.
func withCaller(members []string, caller string) []string {
	out := make([]string, 0, len(members)+1)
	seen := make(map[string]bool, len(members)+1)
	for _, m := range members {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	if caller != "" && !seen[caller] {
		out = append(out, caller)
	}
	return out
}

// requireMember loads a group and checks the caller belongs to it.
func (s *CatalogService) requireMember(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := s.catalog.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeError(err)
	}
	if !group.HasMember(middleware.GetAccountID(ctx)) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotGroupMember)
	}
	return group, nil
}

// CreateGroup creates a new group. The caller always becomes a member.
func (s *CatalogService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	caller := middleware.GetAccountID(ctx)
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
		"caller", caller,
	)

	if strings.TrimSpace(req.Msg.Name) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name required"))
	}

	group := &models.Group{
		Name:    strings.TrimSpace(req.Msg.Name),
		Members: withCaller(req.Msg.Members, caller),
	}
	if err := s.catalog.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, storeError(err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&GroupResponse{Group: toGroup(group)}), nil
}

// GetGroup retrieves a group by ID.
func (s *CatalogService) GetGroup(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[GroupResponse], error) {
	group, err := s.catalog.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("GetGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, storeError(err)
	}
	return connect.NewResponse(&GroupResponse{Group: toGroup(group)}), nil
}

// ListGroups lists the groups the caller belongs to.
func (s *CatalogService) ListGroups(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ListGroupsResponse], error) {
	caller := middleware.GetAccountID(ctx)

	groups, err := s.catalog.ListGroups(ctx)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, storeError(err)
	}

	out := make([]*Group, 0, len(groups))
	for _, g := range groups {
		if g.HasMember(caller) {
			out = append(out, toGroup(g))
		}
	}
	return connect.NewResponse(&ListGroupsResponse{Groups: out}), nil
}

// AddGroupMembers adds members to a group the caller belongs to.
func (s *CatalogService) AddGroupMembers(ctx context.Context, req *connect.Request[AddGroupMembersRequest]) (*connect.Response[GroupResponse], error) {
	slog.Info("AddGroupMembers request received", "group_id", req.Msg.GroupID, "members_count", len(req.Msg.Members))

	if _, err := s.requireMember(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	if err := s.catalog.AddGroupMembers(ctx, req.Msg.GroupID, withCaller(req.Msg.Members, "")); err != nil {
		slog.Error("AddGroupMembers failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, storeError(err)
	}

	group, err := s.catalog.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, storeError(err)
	}
	return connect.NewResponse(&GroupResponse{Group: toGroup(group)}), nil
}

// CreateBill records a bill for a group the caller belongs to.
func (s *CatalogService) CreateBill(ctx context.Context, req *connect.Request[CreateBillRequest]) (*connect.Response[BillResponse], error) {
	slog.Info("CreateBill request received",
		"group_id", req.Msg.GroupID,
		"title", req.Msg.Title,
		"total_amount", req.Msg.TotalAmount,
	)

	if req.Msg.TotalAmount <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("total_amount must be positive"))
	}
	if _, err := s.requireMember(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}

	bill := &models.Bill{
		Title:       strings.TrimSpace(req.Msg.Title),
		GroupID:     req.Msg.GroupID,
		TotalAmount: req.Msg.TotalAmount,
	}
	if err := s.catalog.CreateBill(ctx, bill); err != nil {
		slog.Error("CreateBill failed", "error", err)
		return nil, storeError(err)
	}

	slog.Info("Bill created", "bill_id", bill.ID, "title", bill.Title)
	return connect.NewResponse(&BillResponse{Bill: toBill(bill)}), nil
}

// GetBill retrieves a bill by ID.
func (s *CatalogService) GetBill(ctx context.Context, req *connect.Request[BillRequest]) (*connect.Response[BillResponse], error) {
	bill, err := s.catalog.GetBill(ctx, req.Msg.BillID)
	if err != nil {
		slog.Error("GetBill failed", "bill_id", req.Msg.BillID, "error", err)
		return nil, storeError(err)
	}
	return connect.NewResponse(&BillResponse{Bill: toBill(bill)}), nil
}

// ListBills lists the bills of a group the caller belongs to.
func (s *CatalogService) ListBills(ctx context.Context, req *connect.Request[GroupRequest]) (*connect.Response[ListBillsResponse], error) {
	if _, err := s.requireMember(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}

	bills, err := s.catalog.ListBillsByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListBills failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, storeError(err)
	}

	out := make([]*Bill, len(bills))
	for i, b := range bills {
		out[i] = toBill(b)
	}
	return connect.NewResponse(&ListBillsResponse{Bills: out}), nil
}
