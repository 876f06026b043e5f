package viewer

// ThemeLabel is the text of the theme toggle: it names the mode a click
// switches to.
func ThemeLabel(dark bool) string {
	if dark {
		return "Light mode"
	}
	return "Dark mode"
}

// SetDark sets the theme.
func (c *Controller) SetDark(dark bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sess.SetDark(dark)
	c.d.SetTheme(dark, ThemeLabel(dark))
}

// ThemeToggled flips the theme.
func (c *Controller) ThemeToggled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	dark := !c.sess.Dark()
	c.sess.SetDark(dark)
	c.d.SetTheme(dark, ThemeLabel(dark))
}

// Theme returns the current theme and toggle label.
func (c *Controller) Theme() (dark bool, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Dark(), ThemeLabel(c.sess.Dark())
}
