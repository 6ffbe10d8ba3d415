package reconcile

import (
	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

// printDate reads the record's last Published entry. An entry without a
// valid year counts as absent; a day without a month is read as the year.
func printDate(rec *pure.ResearchOutput) *model.PartialDate {
	s := rec.PrintStatus()
	if s == nil {
		return nil
	}
	d, ok := partialDate(s.PublicationDate)
	if !ok {
		return nil
	}
	return &d
}

func partialDate(pd pure.PublicationDate) (model.PartialDate, bool) {
	year, ok := pd.Year.Value()
	if !ok {
		return model.PartialDate{}, false
	}
	month, hasMonth := pd.Month.Value()
	day, hasDay := pd.Day.Value()

	p := model.PrecisionYear
	switch {
	case hasMonth && hasDay:
		p = model.PrecisionDay
	case hasMonth:
		p = model.PrecisionMonth
	}
	d, err := model.NewPartialDate(year, month, day, p)
	return d, err == nil
}

// guardEpub drops an e-pub date that starts after the print date.
func guardEpub(epub, printed *model.PartialDate, d *Decision) *model.PartialDate {
	if epub == nil || printed == nil {
		return epub
	}
	if epub.After(*printed) {
		d.EpubDiscarded = true
		d.skip(model.SkipEpubAfterPrint)
		return nil
	}
	return epub
}

func (e Engine) reconcileEpub(epub *model.PartialDate, out *pure.ResearchOutput, d *Decision) {
	if epub == nil {
		d.skip(model.SkipNoEpubDate)
		return
	}

	idx := out.EpubStatusIndex()
	if idx < 0 {
		out.PublicationStatuses = append(out.PublicationStatuses,
			pure.NewEpubStatus(e.locale(), mergeDate(pure.PublicationDate{}, *epub)))
		d.EpubChanged = true
		return
	}

	cur := out.PublicationStatuses[idx].PublicationDate
	merged := mergeDate(cur, *epub)
	if !merged.Equal(cur) {
		out.PublicationStatuses[idx].PublicationDate = merged
		d.EpubChanged = true
	}
}

// mergeDate writes d into cur at d's precision. Components d does not
// cover are cleared if cur has them and stay unset otherwise, so a new
// entry carries exactly the known fields.
func mergeDate(cur pure.PublicationDate, d model.PartialDate) pure.PublicationDate {
	out := cur
	out.Year = pure.SetField(d.Year)
	out.Month = component(cur.Month, d.Month, d.Precision >= model.PrecisionMonth)
	out.Day = component(cur.Day, d.Day, d.Precision >= model.PrecisionDay)
	return out
}

func component(cur pure.Field, v int, known bool) pure.Field {
	if known {
		return pure.SetField(v)
	}
	return cur.Cleared()
}
