package hgcmd

// Add schedules files for addition at the next commit; with no files, all
// untracked files are added. Returns false without an error when some files
// could not be added (hg exits 1 for that).
func (c *Client) Add(files ...string) (bool, error) {
	argv := append([]string{"add"}, files...)

	_, ok, err := c.runTolerating(argv, "hg add failed")
	return ok, err
}

// Remove schedules files for removal, deleting them from the working
// directory. Returns false without an error when some files were not removed.
func (c *Client) Remove(files ...string) (bool, error) {
	argv := append([]string{"remove"}, files...)

	_, ok, err := c.runTolerating(argv, "hg remove failed")
	return ok, err
}

// Forget stops tracking files without touching the working directory.
// Returns false without an error when some files were not forgotten.
func (c *Client) Forget(files ...string) (bool, error) {
	argv := append([]string{"forget"}, files...)

	_, ok, err := c.runTolerating(argv, "hg forget failed")
	return ok, err
}
