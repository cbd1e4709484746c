package ui

import "github.com/charmbracelet/bubbles/key"

// GridKeyMap holds the grid key bindings.
type GridKeyMap struct {
	Up, Down, Left, Right key.Binding
	NextPage, PrevPage    key.Binding
	PageSize              key.Binding
	Edit, Search, Sort    key.Binding
	SelectRow, SelectCol  key.Binding
	Unselect              key.Binding
	AddRow, DeleteRows    key.Binding
	AddCol, RenameCol     key.Binding
	DeleteCol             key.Binding
	MoveColLeft           key.Binding
	MoveColRight          key.Binding
	Copy, Discard, Save   key.Binding
	Export                key.Binding
	Help                  key.Binding
}

// DefaultGridKeys returns the default grid bindings.
func DefaultGridKeys() GridKeyMap {
	return GridKeyMap{
		Up:           key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:         key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:         key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
		Right:        key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
		NextPage:     key.NewBinding(key.WithKeys("pgdown", "]"), key.WithHelp("]/pgdn", "next page")),
		PrevPage:     key.NewBinding(key.WithKeys("pgup", "["), key.WithHelp("[/pgup", "prev page")),
		PageSize:     key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "rows per page")),
		Edit:         key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e", "edit cell")),
		Search:       key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Sort:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		SelectRow:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select row")),
		Unselect:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear selection")),
		SelectCol:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "select column")),
		AddRow:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add row")),
		DeleteRows:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete rows")),
		AddCol:       key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add column")),
		RenameCol:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename column")),
		DeleteCol:    key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete column")),
		MoveColLeft:  key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "move column left")),
		MoveColRight: key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "move column right")),
		Copy:         key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy cell")),
		Discard:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "discard changes")),
		Save:         key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		Export:       key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "export to postgres")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
	}
}

// ShortHelp satisfies help.KeyMap.
func (k GridKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Search, k.Sort, k.SelectRow, k.DeleteRows, k.Save, k.Help}
}

// FullHelp satisfies help.KeyMap.
func (k GridKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.NextPage, k.PrevPage, k.PageSize},
		{k.Edit, k.Search, k.Sort, k.Copy},
		{k.SelectRow, k.SelectCol, k.Unselect, k.AddRow, k.DeleteRows},
		{k.AddCol, k.RenameCol, k.DeleteCol, k.MoveColLeft, k.MoveColRight},
		{k.Discard, k.Save, k.Export, k.Help},
	}
}

// FilesKeyMap holds the file list key bindings.
type FilesKeyMap struct {
	Up, Down        key.Binding
	Open, Upload    key.Binding
	Rename, Delete  key.Binding
	Refresh         key.Binding
}

// DefaultFilesKeys returns the default file list bindings.
func DefaultFilesKeys() FilesKeyMap {
	return FilesKeyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Upload:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload")),
		Rename:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Refresh: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),
	}
}

// ShortHelp satisfies help.KeyMap.
func (k FilesKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Open, k.Upload, k.Rename, k.Delete, k.Refresh}
}

// FullHelp satisfies help.KeyMap.
func (k FilesKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Open}, {k.Upload, k.Rename, k.Delete, k.Refresh}}
}
