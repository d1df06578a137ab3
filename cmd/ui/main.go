package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"gioui.org/app"
	"gioui.org/font"
	"gioui.org/font/gofont"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"task-manager/pkg/client"
	"task-manager/pkg/task"
)

var (
	apiBase = "http://localhost:5000/"
	theme   *material.Theme
)

// Pages
const (
	pageDashboard = iota
	pageTasks
	pageForm
)

const (
	recentLimit = 5
	listLimit   = 10
)

// filterOptions backs the status filter buttons; "" means all.
var filterOptions = []task.Status{"", task.StatusPending, task.StatusInProgress, task.StatusCompleted}

var grey = color.NRGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xFF}

type UI struct {
	api *client.Client
	win *app.Window

	// mu guards everything below; fetches run off the frame goroutine.
	mu          sync.Mutex
	currentPage int
	message     string

	// Nav buttons
	navDashboard widget.Clickable
	navTasks     widget.Clickable
	navNew       widget.Clickable

	// Dashboard
	stats      task.Stats
	recent     []task.Task
	recentList widget.List
	refreshBtn widget.Clickable

	// Tasks
	taskList     widget.List
	page         *task.Page
	pageNum      int
	statusFilter task.Status
	searchEditor widget.Editor
	searchBtn    widget.Clickable
	filterBtn    [4]widget.Clickable
	prevBtn      widget.Clickable
	nextBtn      widget.Clickable
	editBtn      []widget.Clickable
	advanceBtn   []widget.Clickable
	deleteBtn    []widget.Clickable

	// Create / edit form
	editingID   string // empty when creating
	titleEditor widget.Editor
	descEditor  widget.Editor
	formStatus  task.Status
	statusBtn   [3]widget.Clickable
	saveBtn     widget.Clickable
	cancelBtn   widget.Clickable
}

func main() {
	if base := os.Getenv("API_BASE"); base != "" {
		apiBase = base
	}

	theme = material.NewTheme()
	theme.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	theme.Palette.Bg = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xFF}
	theme.Palette.Fg = color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF}
	theme.Palette.ContrastBg = color.NRGBA{R: 0x30, G: 0x60, B: 0xA0, A: 0xFF}
	theme.Palette.ContrastFg = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

	ui := &UI{
		api:        client.New(apiBase),
		win:        new(app.Window),
		pageNum:    1,
		formStatus: task.StatusPending,
	}
	ui.recentList.Axis = layout.Vertical
	ui.taskList.Axis = layout.Vertical
	ui.searchEditor.SingleLine = true
	ui.searchEditor.Submit = true
	ui.titleEditor.SingleLine = true

	go ui.pollData()

	go func() {
		ui.win.Option(app.Title("Task Manager"))
		ui.win.Option(app.Size(unit.Dp(1100), unit.Dp(760)))
		if err := ui.run(ui.win); err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func (ui *UI) run(w *app.Window) error {
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			ui.mu.Lock()
			ui.handleClicks(gtx)
			ui.layout(gtx)
			ui.mu.Unlock()
			e.Frame(gtx.Ops)
		}
	}
}

func (ui *UI) handleClicks(gtx layout.Context) {
	if ui.navDashboard.Clicked(gtx) {
		ui.currentPage = pageDashboard
		go ui.fetchDashboard()
	}
	if ui.navTasks.Clicked(gtx) {
		ui.currentPage = pageTasks
		go ui.fetchTasks()
	}
	if ui.navNew.Clicked(gtx) {
		ui.openForm(nil)
	}
	if ui.refreshBtn.Clicked(gtx) {
		go ui.fetchAll()
	}

	// Tasks page
	submitted := false
	for {
		ev, ok := ui.searchEditor.Update(gtx)
		if !ok {
			break
		}
		if _, ok := ev.(widget.SubmitEvent); ok {
			submitted = true
		}
	}
	if ui.searchBtn.Clicked(gtx) || submitted {
		ui.pageNum = 1
		go ui.fetchTasks()
	}
	for i := range ui.filterBtn {
		if ui.filterBtn[i].Clicked(gtx) {
			ui.statusFilter = filterOptions[i]
			ui.pageNum = 1
			go ui.fetchTasks()
		}
	}
	if ui.prevBtn.Clicked(gtx) && ui.page != nil && ui.page.Pagination.HasPrev {
		ui.pageNum--
		go ui.fetchTasks()
	}
	if ui.nextBtn.Clicked(gtx) && ui.page != nil && ui.page.Pagination.HasNext {
		ui.pageNum++
		go ui.fetchTasks()
	}
	if ui.page != nil {
		for i, t := range ui.page.Tasks {
			if i >= len(ui.editBtn) {
				break
			}
			if ui.editBtn[i].Clicked(gtx) {
				ui.openForm(&t)
			}
			if ui.advanceBtn[i].Clicked(gtx) {
				go ui.setStatus(t.ID, t.Status.Next())
			}
			if ui.deleteBtn[i].Clicked(gtx) {
				go ui.deleteTask(t.ID)
			}
		}
	}

	// Form
	for i, s := range task.Statuses() {
		if ui.statusBtn[i].Clicked(gtx) {
			ui.formStatus = s
		}
	}
	if ui.saveBtn.Clicked(gtx) {
		go ui.saveForm(ui.editingID, ui.titleEditor.Text(), ui.descEditor.Text(), ui.formStatus)
	}
	if ui.cancelBtn.Clicked(gtx) {
		ui.currentPage = pageTasks
		ui.message = ""
	}
}

// openForm switches to the form, prefilled from t or empty for a new task.
func (ui *UI) openForm(t *task.Task) {
	ui.currentPage = pageForm
	ui.message = ""
	if t == nil {
		ui.editingID = ""
		ui.titleEditor.SetText("")
		ui.descEditor.SetText("")
		ui.formStatus = task.StatusPending
		return
	}
	ui.editingID = t.ID
	ui.titleEditor.SetText(t.Title)
	ui.descEditor.SetText(t.Description)
	ui.formStatus = t.Status
}

func (ui *UI) layout(gtx layout.Context) layout.Dimensions {
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return ui.layoutNav(gtx)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Right: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(16)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Rigid(ui.layoutMessage),
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						switch ui.currentPage {
						case pageTasks:
							return ui.layoutTasks(gtx)
						case pageForm:
							return ui.layoutForm(gtx)
						default:
							return ui.layoutDashboard(gtx)
						}
					}),
				)
			})
		}),
	)
}

func (ui *UI) layoutMessage(gtx layout.Context) layout.Dimensions {
	if ui.message == "" {
		return layout.Dimensions{}
	}
	return layout.Inset{Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		label := material.Body2(theme, ui.message)
		label.Color = color.NRGBA{R: 0xFF, G: 0x60, B: 0x60, A: 0xFF}
		return label.Layout(gtx)
	})
}

func (ui *UI) layoutNav(gtx layout.Context) layout.Dimensions {
	gtx.Constraints.Min.X = gtx.Dp(unit.Dp(180))
	gtx.Constraints.Max.X = gtx.Dp(unit.Dp(180))
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Top: unit.Dp(16), Bottom: unit.Dp(16), Left: unit.Dp(12)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				label := material.H6(theme, "Task Manager")
				label.Color = theme.Palette.ContrastFg
				return label.Layout(gtx)
			})
		}),
		layout.Rigid(navBtn(theme, &ui.navDashboard, "Dashboard", ui.currentPage == pageDashboard)),
		layout.Rigid(navBtn(theme, &ui.navTasks, "Tasks", ui.currentPage == pageTasks)),
		layout.Rigid(navBtn(theme, &ui.navNew, "Add Task", ui.currentPage == pageForm && ui.editingID == "")),
	)
}

func navBtn(th *material.Theme, btn *widget.Clickable, label string, active bool) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Inset{Top: unit.Dp(2), Bottom: unit.Dp(2), Left: unit.Dp(8), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
			return toggleBtn(th, btn, label, active).Layout(gtx)
		})
	}
}

func toggleBtn(th *material.Theme, btn *widget.Clickable, label string, active bool) material.ButtonStyle {
	b := material.Button(th, btn, label)
	if active {
		b.Background = th.Palette.ContrastBg
	} else {
		b.Background = color.NRGBA{R: 0x2A, G: 0x2A, B: 0x2A, A: 0xFF}
	}
	b.Color = th.Palette.Fg
	return b
}

func (ui *UI) layoutDashboard(gtx layout.Context) layout.Dimensions {
	count := func(label string, n int) layout.FlexChild {
		return layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Body1(theme, fmt.Sprintf("%s: %d", label, n)).Layout(gtx)
		})
	}
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "Dashboard").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		count("Total Tasks", ui.stats.Total()),
		count("Pending", ui.stats.Count(task.StatusPending)),
		count("In Progress", ui.stats.Count(task.StatusInProgress)),
		count("Completed", ui.stats.Count(task.StatusCompleted)),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Button(theme, &ui.refreshBtn, "Refresh").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H6(theme, "Recent Tasks").Layout(gtx)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			if len(ui.recent) == 0 {
				return material.Body2(theme, "No tasks yet.").Layout(gtx)
			}
			return material.List(theme, &ui.recentList).Layout(gtx, len(ui.recent), func(gtx layout.Context, i int) layout.Dimensions {
				return layoutTaskSummary(gtx, ui.recent[i])
			})
		}),
	)
}

func layoutTaskSummary(gtx layout.Context, t task.Task) layout.Dimensions {
	return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				label := material.Body2(theme, t.Title)
				label.Font.Weight = font.Bold
				return label.Layout(gtx)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				label := material.Caption(theme, fmt.Sprintf("[%s] %s · %s", t.Status, shortID(t.ID), t.CreatedAt.Local().Format("2006-01-02 15:04")))
				label.Color = statusColor(t.Status)
				return label.Layout(gtx)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				label := material.Caption(theme, t.Description)
				label.Color = grey
				return label.Layout(gtx)
			}),
		)
	})
}

func (ui *UI) layoutTasks(gtx layout.Context) layout.Dimensions {
	var tasks []task.Task
	if ui.page != nil {
		tasks = ui.page.Tasks
	}
	// Ensure button slices match data
	for len(ui.editBtn) < len(tasks) {
		ui.editBtn = append(ui.editBtn, widget.Clickable{})
		ui.advanceBtn = append(ui.advanceBtn, widget.Clickable{})
		ui.deleteBtn = append(ui.deleteBtn, widget.Clickable{})
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, "Tasks").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return material.Editor(theme, &ui.searchEditor, "Search title or description...").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.searchBtn, "Search").Layout(gtx)
				}),
			)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Rigid(ui.layoutFilters),
		layout.Rigid(layout.Spacer{Height: unit.Dp(8)}.Layout),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			if len(tasks) == 0 {
				return material.Body2(theme, "No tasks match.").Layout(gtx)
			}
			return material.List(theme, &ui.taskList).Layout(gtx, len(tasks), func(gtx layout.Context, i int) layout.Dimensions {
				return ui.layoutTaskRow(gtx, i, tasks[i])
			})
		}),
		layout.Rigid(ui.layoutPager),
	)
}

func (ui *UI) layoutFilters(gtx layout.Context) layout.Dimensions {
	children := make([]layout.FlexChild, 0, len(filterOptions)*2)
	for i, s := range filterOptions {
		label := "All"
		if s != "" {
			label = string(s)
		}
		children = append(children,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return toggleBtn(theme, &ui.filterBtn[i], label, ui.statusFilter == s).Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(6)}.Layout),
		)
	}
	return layout.Flex{}.Layout(gtx, children...)
}

func (ui *UI) layoutTaskRow(gtx layout.Context, i int, t task.Task) layout.Dimensions {
	return layout.Inset{Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layoutTaskSummary(gtx, t)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{}.Layout(gtx,
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return material.Button(theme, &ui.editBtn[i], "Edit").Layout(gtx)
					}),
					layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						return material.Button(theme, &ui.advanceBtn[i], "Mark "+string(t.Status.Next())).Layout(gtx)
					}),
					layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
					layout.Rigid(func(gtx layout.Context) layout.Dimensions {
						btn := material.Button(theme, &ui.deleteBtn[i], "Delete")
						btn.Background = color.NRGBA{R: 0xC0, G: 0x30, B: 0x30, A: 0xFF}
						return btn.Layout(gtx)
					}),
				)
			}),
		)
	})
}

func (ui *UI) layoutPager(gtx layout.Context) layout.Dimensions {
	summary := "Page 0 of 0"
	if ui.page != nil {
		p := ui.page.Pagination
		summary = fmt.Sprintf("Page %d of %d · %d tasks", p.CurrentPage, p.TotalPages, p.TotalTasks)
	}
	return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Button(theme, &ui.prevBtn, "Previous").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: unit.Dp(12)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Body2(theme, summary).Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Width: unit.Dp(12)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Button(theme, &ui.nextBtn, "Next").Layout(gtx)
		}),
	)
}

func (ui *UI) layoutForm(gtx layout.Context) layout.Dimensions {
	heading := "Add New Task"
	if ui.editingID != "" {
		heading = "Edit Task"
	}

	statusChildren := make([]layout.FlexChild, 0, 6)
	for i, s := range task.Statuses() {
		statusChildren = append(statusChildren,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return toggleBtn(theme, &ui.statusBtn[i], string(s), ui.formStatus == s).Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(6)}.Layout),
		)
	}

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.H5(theme, heading).Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return material.Editor(theme, &ui.titleEditor, "Title").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			gtx.Constraints.Min.Y = gtx.Dp(unit.Dp(80))
			return material.Editor(theme, &ui.descEditor, "Description").Layout(gtx)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(12)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx, statusChildren...)
		}),
		layout.Rigid(layout.Spacer{Height: unit.Dp(16)}.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.saveBtn, "Save").Layout(gtx)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return material.Button(theme, &ui.cancelBtn, "Cancel").Layout(gtx)
				}),
			)
		}),
	)
}

func statusColor(s task.Status) color.NRGBA {
	switch s {
	case task.StatusPending:
		return color.NRGBA{R: 0xFF, G: 0xA0, B: 0x00, A: 0xFF}
	case task.StatusInProgress:
		return color.NRGBA{R: 0x00, G: 0xA0, B: 0xFF, A: 0xFF}
	case task.StatusCompleted:
		return color.NRGBA{R: 0x00, G: 0xC0, B: 0x00, A: 0xFF}
	}
	return grey
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// Data fetching

func (ui *UI) pollData() {
	ui.fetchAll()
	ticker := time.NewTicker(10 * time.Second)
	for range ticker.C {
		ui.fetchAll()
	}
}

func (ui *UI) fetchAll() {
	ui.fetchDashboard()
	ui.fetchTasks()
}

func (ui *UI) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

// update applies fn under the lock and schedules a redraw.
func (ui *UI) update(fn func()) {
	ui.mu.Lock()
	fn()
	ui.mu.Unlock()
	ui.win.Invalidate()
}

func (ui *UI) report(action string, err error) {
	log.Printf("%s: %v", action, err)
	msg := err.Error()
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
		if fields := apiErr.Fields(); len(fields) > 0 {
			parts := make([]string, 0, len(fields))
			for k, v := range fields {
				parts = append(parts, k+" "+v)
			}
			msg += ": " + strings.Join(parts, ", ")
		}
	}
	ui.update(func() { ui.message = msg })
}

func (ui *UI) fetchDashboard() {
	ctx, cancel := ui.ctx()
	defer cancel()

	stats, err := ui.api.Stats(ctx)
	if err != nil {
		ui.report("fetch stats", err)
		return
	}
	recent, err := ui.api.ListTasks(ctx, task.Query{Page: 1, Limit: recentLimit})
	if err != nil {
		ui.report("fetch recent tasks", err)
		return
	}
	ui.update(func() {
		ui.stats = stats
		ui.recent = recent.Tasks
	})
}

func (ui *UI) fetchTasks() {
	ui.mu.Lock()
	q := task.Query{
		Search: strings.TrimSpace(ui.searchEditor.Text()),
		Status: ui.statusFilter,
		Page:   ui.pageNum,
		Limit:  listLimit,
	}
	ui.mu.Unlock()

	ctx, cancel := ui.ctx()
	defer cancel()

	page, err := ui.api.ListTasks(ctx, q)
	if err != nil {
		ui.report("fetch tasks", err)
		return
	}
	ui.update(func() {
		ui.page = page
		// Deleting the last task on a page leaves it empty; step back.
		if len(page.Tasks) == 0 && page.Pagination.TotalPages > 0 && ui.pageNum > page.Pagination.TotalPages {
			ui.pageNum = page.Pagination.TotalPages
			go ui.fetchTasks()
		}
	})
}

func (ui *UI) setStatus(id string, status task.Status) {
	ctx, cancel := ui.ctx()
	defer cancel()

	if _, err := ui.api.UpdateTask(ctx, id, task.Update{Status: &status}); err != nil {
		ui.report("update task", err)
		return
	}
	ui.fetchAll()
}

func (ui *UI) deleteTask(id string) {
	ctx, cancel := ui.ctx()
	defer cancel()

	if err := ui.api.DeleteTask(ctx, id); err != nil {
		ui.report("delete task", err)
		return
	}
	ui.fetchAll()
}

func (ui *UI) saveForm(id, title, description string, status task.Status) {
	ctx, cancel := ui.ctx()
	defer cancel()

	var err error
	if id == "" {
		_, err = ui.api.CreateTask(ctx, task.CreateInput{Title: title, Description: description, Status: status})
	} else {
		_, err = ui.api.UpdateTask(ctx, id, task.Update{Title: &title, Description: &description, Status: &status})
	}
	if err != nil {
		ui.report("save task", err)
		return
	}
	ui.update(func() {
		ui.message = ""
		ui.currentPage = pageTasks
		if id == "" {
			ui.pageNum = 1
		}
	})
	ui.fetchAll()
}
