package workbook

// Status grades a sheet's data-point conservation check.
type Status string

const (
	StatusValid   Status = "valid"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// SheetReport records what processing did to one worksheet and whether the
// data points survived it.
type SheetReport struct {
	Sheet            string
	Blocks           int
	HorizontalMerges int
	VerticalMerges   int
	SplitSheets      int
	PrePoints        int
	PostPoints       int
	DroppedCells     int
	Status           Status
	Notes            []string
}

// Report is the outcome of one workbook's full pipeline.
type Report struct {
	Source      string
	Destination string
	Sheets      []SheetReport
}

// Status aggregates the worst sheet status: error > warning > valid.
func (r *Report) Status() Status {
	status := StatusValid
	for _, s := range r.Sheets {
		switch s.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			status = StatusWarning
		}
	}
	return status
}

// validate grades a sheet's pre/post data-point counts. Dropped duplicate
// columns are expected losses; anything beyond them needs an operator's eye.
// Nothing is auto-corrected here.
func validate(rep *SheetReport) {
	expected := rep.PrePoints - rep.DroppedCells
	diff := rep.PostPoints - expected
	switch {
	case diff == 0:
		rep.Status = StatusValid
	case diff > 0:
		// More points than we started with can only be a detection bug.
		rep.Status = StatusError
	case diff >= -2:
		rep.Status = StatusWarning
	default:
		rep.Status = StatusError
	}
}
