// Package cgpgo is the module root of a Cartesian Genetic Programming
// toolkit.
//
// The cgp package holds the function catalog, the layered genotype with its
// mutation operators and text codec, and an evolutionary trainer
// (population, speciation, stagnation, reproduction, checkpoints). The
// cgp/graph package evaluates the decoded expression graphs, cgp/agent turns
// CGP and linear GP genotypes into decision-making agents, cgp/archive
// stores evolved genotypes, and cgp/bench provides boolean benchmark tasks.
//
// Basic usage:
//
//	// Load configuration
//	config, err := cgp.LoadConfig("configs/xor.ini")
//	if err != nil {
//		log.Fatalf("Error loading config: %v", err)
//	}
//
//	// Create a new population
//	pop, err := cgp.NewPopulation(config)
//	if err != nil {
//		log.Fatalf("Error creating population: %v", err)
//	}
//
//	// Run for 100 generations with your fitness function
//	fitness := bench.XOR().FitnessFunc()
//	for i := 0; i < 100; i++ {
//		winner, err := pop.RunGeneration(fitness)
//		if err != nil {
//			log.Fatalf("Error running generation: %v", err)
//		}
//		if winner != nil {
//			fmt.Println("Solution found:", winner.Genotype.Export())
//			break
//		}
//	}
package cgpgo
