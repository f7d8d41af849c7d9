package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/lookbusy1344/rv32im-toolchain/vm"
)

// Run starts the debugger's interface: the TUI if UseTUI is set, otherwise
// the line-oriented REPL on stdin/stdout.
func (d *Debugger) Run() error {
	if d.UseTUI {
		return RunTUI(d)
	}
	return RunCLI(d)
}

// RunCLI runs the command-line debugger interface
func RunCLI(dbg *Debugger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		// Print prompt
		fmt.Print("(rv32im-dbg) ")

		// Read command
		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		// Exit commands
		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		// Execute command
		if err := dbg.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		// Print any output from the debugger
		output := dbg.GetOutput()
		if output != "" {
			fmt.Print(output)
		}

		// If running, execute until breakpoint or halt
		if dbg.Running {
			for dbg.Running {
				// Check for breakpoint before execution
				if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
					dbg.Running = false
					fmt.Printf("Stopped: %s at PC=0x%08X\n", reason, dbg.VM.RF.PC)
					break
				}

				// Execute one step
				if !dbg.VM.Step() {
					dbg.Running = false
					if dbg.VM.State == vm.StateHaltedNormal {
						fmt.Printf("Program exited with code %d\n", dbg.VM.ExitCode)
					} else if dbg.VM.Err != nil {
						fmt.Printf("Runtime error: %v\n", dbg.VM.Err)
					} else {
						fmt.Println("Program stopped: timeout")
					}
					break
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	return nil
}

// RunTUI runs the TUI (Text User Interface) debugger
func RunTUI(dbg *Debugger) error {
	tui := NewTUI(dbg)
	return tui.Run()
}
