package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
	"github.com/sdyn/go-sdyn/internal/logging"
	"github.com/sdyn/go-sdyn/internal/table"
)

func (s *Server) feeList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := table.ParseState(r.URL.Query())
	page, err := clientFrom(ctx).ListFees(ctx, s.listParams(st, feeSortFields))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, ok := remoteView(w, r, s.feeTable(true), page, st, feeSortFields)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "list", &Page{
		Title: "Гишүүнчлэлийн татвар",
		Data: listData{
			Table:    view,
			NewHref:  "/fees/new",
			NewLabel: "Татвар бүртгэх",
			Links:    []action{{Href: "/fees/bulk", Label: "Бөөнөөр бүртгэх"}},
		},
	})
}

func newFeeForm() *form {
	return &form{
		Title:  "Татвар бүртгэх",
		Action: "/fees",
		Submit: "Бүртгэх",
		Cancel: "/fees",
		Fields: feeFields(false),
	}
}

func editFeeForm(id string) *form {
	return &form{
		Title:  "Татвар засах",
		Action: "/fees/" + url.PathEscape(id),
		Submit: "Хадгалах",
		Cancel: "/fees",
		Fields: feeFields(true),
	}
}

func (s *Server) feeNew(w http.ResponseWriter, r *http.Request) {
	f := newFeeForm()
	if id := r.URL.Query().Get("member_id"); id != "" {
		f.bind(url.Values{"member_id": {id}})
	}
	s.renderForm(w, r, http.StatusOK, f)
}

func (s *Server) feeCreate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseFee(r.PostForm, false)
	if len(errs) > 0 {
		s.invalid(w, r, newFeeForm(), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).CreateFee(ctx, in); err != nil {
		s.rejected(w, r, newFeeForm(), err)
		return
	}
	redirect(w, r, "/fees", "created")
}

func newBulkFeeForm() *form {
	return &form{
		Title:  "Татвар бөөнөөр бүртгэх",
		Action: "/fees/bulk",
		Submit: "Бүртгэх",
		Cancel: "/fees",
		Fields: bulkFeeFields(),
	}
}

func (s *Server) feeBulkNew(w http.ResponseWriter, r *http.Request) {
	s.renderForm(w, r, http.StatusOK, newBulkFeeForm())
}

func (s *Server) feeBulkCreate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseBulkFees(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, newBulkFeeForm(), errs)
		return
	}
	ctx := r.Context()
	n, err := clientFrom(ctx).BulkCreateFees(ctx, in)
	if err != nil {
		s.rejected(w, r, newBulkFeeForm(), err)
		return
	}
	logging.FromContext(ctx).Infow("Created fees", "count", n, "requested", len(in.MemberIDs), "year", in.Year)
	redirect(w, r, "/fees", "bulk")
}

func (s *Server) feeEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fee, err := clientFrom(ctx).GetFee(ctx, pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fee == nil {
		s.notFound(w, r)
		return
	}
	f := editFeeForm(fee.ID).bind(feeValues(fee))
	if fee.MemberName != "" {
		f.Title += ": " + fee.MemberName
	}
	s.renderForm(w, r, http.StatusOK, f)
}

func (s *Server) feeUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id := pathID(r)
	in, errs := parseFee(r.PostForm, true)
	if len(errs) > 0 {
		s.invalid(w, r, editFeeForm(id), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).UpdateFee(ctx, id, in); err != nil {
		s.rejected(w, r, editFeeForm(id), err)
		return
	}
	redirect(w, r, "/fees", "updated")
}

func (s *Server) feeApproveConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fee, err := clientFrom(ctx).GetFee(ctx, pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if fee == nil {
		s.notFound(w, r)
		return
	}
	if fee.Status == sdyn.FeePaid || fee.Status == sdyn.FeeWaived {
		redirect(w, r, "/fees", "")
		return
	}
	who := fee.MemberName
	if who == "" {
		who = fee.MemberID
	}
	s.render(w, r, http.StatusOK, "confirm", &Page{
		Title: "Төлбөр батлах",
		Data: confirmData{
			Message: who + " гишүүний " + strconv.Itoa(fee.Year) + " оны " + format.Currency(fee.Amount) + " төлбөрийг төлсөнд тооцох уу?",
			Action:  "/fees/" + url.PathEscape(fee.ID) + "/approve",
			Submit:  "Батлах",
			Cancel:  "/fees",
		},
	})
}

func (s *Server) feeApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := clientFrom(ctx).ApproveFee(ctx, pathID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/fees", "approved")
}

// feeSummary totals a member's own fees.
type feeSummary struct {
	Paid    decimal.Decimal
	Pending decimal.Decimal
}

func summarizeFees(fees []sdyn.MembershipFee) feeSummary {
	var sum feeSummary
	for _, f := range fees {
		switch f.Status {
		case sdyn.FeePaid:
			sum.Paid = sum.Paid.Add(f.Amount)
		case sdyn.FeePending, sdyn.FeeOverdue:
			sum.Pending = sum.Pending.Add(f.Amount)
		}
	}
	return sum
}

// myFees is the member portal's list of the user's own fees.
func (s *Server) myFees(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fees, err := clientFrom(ctx).ProfileFees(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sum := summarizeFees(fees)
	s.render(w, r, http.StatusOK, "list", &Page{
		Title: "Миний татвар",
		Data: listData{
			Table: s.feeTable(false).Apply(fees, table.ParseState(r.URL.Query())),
			Summary: []detailField{
				{"Төлсөн", text(format.Currency(sum.Paid))},
				{"Төлөгдөөгүй", text(format.Currency(sum.Pending))},
			},
		},
	})
}
